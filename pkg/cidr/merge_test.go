package cidr

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func prefixes(ss ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(ss))
	for _, s := range ss {
		out = append(out, netip.MustParsePrefix(s))
	}
	return out
}

func strings(ps []netip.Prefix) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.String())
	}
	return out
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name: "empty",
		},
		{
			name:  "single",
			input: []string{"1.2.3.4/32"},
			want:  []string{"1.2.3.4/32"},
		},
		{
			name:  "sorted output",
			input: []string{"9.9.9.9/32", "1.1.1.1/32", "5.5.0.0/16"},
			want:  []string{"1.1.1.1/32", "5.5.0.0/16", "9.9.9.9/32"},
		},
		{
			name:  "sibling halves collapse",
			input: []string{"93.184.216.128/25", "93.184.216.0/25"},
			want:  []string{"93.184.216.0/24"},
		},
		{
			name:  "cascade up several levels",
			input: []string{"8.8.8.0/32", "8.8.8.1/32", "8.8.8.2/31"},
			want:  []string{"8.8.8.0/30"},
		},
		{
			name:  "contained prefixes dropped",
			input: []string{"5.0.0.0/8", "5.1.2.3/32", "5.200.0.0/16"},
			want:  []string{"5.0.0.0/8"},
		},
		{
			name:  "adjacent but not siblings stay apart",
			input: []string{"8.8.8.1/32", "8.8.8.2/32"},
			want:  []string{"8.8.8.1/32", "8.8.8.2/32"},
		},
		{
			name:  "merge then absorb",
			input: []string{"1.0.0.0/25", "1.0.0.128/25", "1.0.0.7/32", "1.0.1.0/24"},
			want:  []string{"1.0.0.0/23"},
		},
		{
			name:  "ipv6 siblings",
			input: []string{"2a00:1450::/33", "2a00:1450:8000::/33"},
			want:  []string{"2a00:1450::/32"},
		},
		{
			name:  "whole space from halves",
			input: []string{"0.0.0.0/1", "128.0.0.0/1"},
			want:  []string{"0.0.0.0/0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(prefixes(tt.input...))
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, strings(got))
		})
	}
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	in := prefixes("2.0.0.0/32", "1.0.0.0/32")
	Merge(in)
	assert.Equal(t, []string{"2.0.0.0/32", "1.0.0.0/32"}, strings(in))
}

func TestHalves(t *testing.T) {
	lower, upper := halves(netip.MustParsePrefix("10.0.0.0/24"))
	assert.Equal(t, "10.0.0.0/25", lower.String())
	assert.Equal(t, "10.0.0.128/25", upper.String())

	lower, upper = halves(netip.MustParsePrefix("2a00::/15"))
	assert.Equal(t, "2a00::/16", lower.String())
	assert.Equal(t, "2a01::/16", upper.String())
}

func TestSet(t *testing.T) {
	s := NewSet()
	assert.True(t, s.Add(netip.MustParsePrefix("1.1.1.1/32")))
	assert.False(t, s.Add(netip.MustParsePrefix("1.1.1.1/32")))
	assert.True(t, s.Add(netip.MustParsePrefix("2a00::/16")))
	assert.Equal(t, 2, s.Len())

	v4, v6 := s.Split()
	assert.Equal(t, []string{"1.1.1.1/32"}, strings(v4))
	assert.Equal(t, []string{"2a00::/16"}, strings(v6))
}

func TestAddressCount(t *testing.T) {
	assert.Equal(t, "257", AddressCount(prefixes("1.0.0.0/24", "2.2.2.2/32")).String())
	assert.Equal(t, "79228162514264337593543950336", AddressCount(prefixes("2a00::/32")).String())
	assert.Equal(t, "0", AddressCount(nil).String())
}
