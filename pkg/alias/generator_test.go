package alias

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/netalias/genalias/pkg/dump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

const testDump = `Updated on 2026-10-19 06:00:00 +0000
93.184.216.0/25|93.184.216.128/25;blocked.example;;Org;1;2020-01-01
10.0.0.1|224.0.0.5|not-an-ip;;https://mirror.example/path;Org;2;2020-01-01
2a00:1450::/33|2a00:1450:8000::/33;;;Org;3;2020-01-01
8.8.8.8;*.blocked.example;;Org;4;2020-01-01
8.8.8.8;;;Org;5;2020-01-01
`

func newReader(t *testing.T, content string) *dump.Reader {
	t.Helper()
	r, err := dump.NewReader(strings.NewReader(content), "utf-8")
	require.NoError(t, err)
	return r
}

func fakeLookup(records map[string][]string) func(context.Context, string, string) ([]netip.Addr, error) {
	return func(_ context.Context, _, host string) ([]netip.Addr, error) {
		raw, ok := records[host]
		if !ok {
			return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
		}
		var addrs []netip.Addr
		for _, a := range raw {
			addrs = append(addrs, netip.MustParseAddr(a))
		}
		return addrs, nil
	}
}

func TestRunWithoutDNS(t *testing.T) {
	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{})

	var v4, v6 bytes.Buffer
	result, err := g.Run(context.Background(), newReader(t, testDump), &v4, &v6)
	require.NoError(t, err)

	assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n", v4.String())
	assert.Equal(t, "2a00:1450::/32\n", v6.String())

	assert.Equal(t, 5, result.Stats.Rows)
	assert.Equal(t, 5, result.Stats.Subnets)
	assert.Zero(t, result.Stats.Hosts)
	assert.Equal(t, 2, result.Stats.MergedV4)
	assert.Equal(t, 1, result.Stats.MergedV6)
	assert.Equal(t, "79228162514264337593543950593", result.Stats.TotalAddresses)
}

func TestRunSingleOutputAppendsIPv6(t *testing.T) {
	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{})

	var out bytes.Buffer
	_, err := g.Run(context.Background(), newReader(t, testDump), &out, nil)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n2a00:1450::/32\n", out.String())
}

func TestRunWithDNS(t *testing.T) {
	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{
		DNSJobs: 4,
		Lookup: fakeLookup(map[string][]string{
			"blocked.example": {"93.184.217.1", "192.168.1.1"},
			"mirror.example":  {"2a01:4f8::1"},
		}),
	})

	var v4, v6 bytes.Buffer
	result, err := g.Run(context.Background(), newReader(t, testDump), &v4, &v6)
	require.NoError(t, err)

	assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n93.184.217.1/32\n", v4.String())
	assert.Equal(t, "2a00:1450::/32\n2a01:4f8::1/128\n", v6.String())
	assert.Equal(t, 2, result.Stats.Hosts)
	assert.Zero(t, result.Stats.HostsFailed)
	assert.Equal(t, 7, result.Stats.SubnetsAfterDNS)
}

func TestGenerateCountsFailedHosts(t *testing.T) {
	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{
		DNSJobs: 1,
		Lookup:  fakeLookup(nil),
	})

	result, err := g.Generate(context.Background(), newReader(t, testDump))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.HostsFailed)
	assert.Equal(t, result.Stats.Subnets, result.Stats.SubnetsAfterDNS)
}

func TestGenerateFiles(t *testing.T) {
	dir := t.TempDir()
	v4Path := filepath.Join(dir, "out", "alias.txt")
	v6Path := filepath.Join(dir, "out", "alias6.txt")

	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{})
	_, err := GenerateFiles(context.Background(), g, newReader(t, testDump), io.Discard, v4Path, v6Path)
	require.NoError(t, err)

	content, err := os.ReadFile(v4Path)
	require.NoError(t, err)
	assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n", string(content))

	content, err = os.ReadFile(v6Path)
	require.NoError(t, err)
	assert.Equal(t, "2a00:1450::/32\n", string(content))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary files must not be left behind")
}

func TestGenerateFilesMixesStdoutAndFiles(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "list.txt")
	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{})

	t.Run("v4 on stdout, v6 to a file", func(t *testing.T) {
		var stdout bytes.Buffer
		_, err := GenerateFiles(context.Background(), g, newReader(t, testDump), &stdout, Stdout, listPath)
		require.NoError(t, err)
		assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n", stdout.String())

		content, err := os.ReadFile(listPath)
		require.NoError(t, err)
		assert.Equal(t, "2a00:1450::/32\n", string(content))
	})

	t.Run("v4 to a file, v6 on stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		_, err := GenerateFiles(context.Background(), g, newReader(t, testDump), &stdout, listPath, Stdout)
		require.NoError(t, err)
		assert.Equal(t, "2a00:1450::/32\n", stdout.String())

		content, err := os.ReadFile(listPath)
		require.NoError(t, err)
		assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n", string(content))
	})

	t.Run("both on stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		_, err := GenerateFiles(context.Background(), g, newReader(t, testDump), &stdout, Stdout, Stdout)
		require.NoError(t, err)
		assert.Equal(t, "8.8.8.8/32\n93.184.216.0/24\n2a00:1450::/32\n", stdout.String())
	})
}

func TestGenerateFilesKeepsOldListOnFailure(t *testing.T) {
	dir := t.TempDir()
	v4Path := filepath.Join(dir, "alias.txt")
	require.NoError(t, os.WriteFile(v4Path, []byte("1.1.1.1/32\n"), 0644))

	g := NewGenerator(zaptest.NewLogger(t).Sugar(), Options{DNSJobs: 1, Lookup: fakeLookup(nil)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := GenerateFiles(ctx, g, newReader(t, "banner\n;a.example;\n"), io.Discard, v4Path, "")
	require.Error(t, err)

	content, err := os.ReadFile(v4Path)
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1/32\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReportWriteFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "alias.txt")
	require.NoError(t, os.WriteFile(list, []byte("8.8.8.8/32\n"), 0644))

	out, err := DescribeOutput(list, 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Digest, "sha256:"))

	report := &Report{
		RunID:   "run-1",
		Stats:   Stats{Rows: 1, MergedV4: 1, TotalAddresses: "1"},
		Outputs: []OutputReport{out},
		Commit:  &CommitReport{Branch: "gh-pages", Changed: true},
	}
	path := filepath.Join(dir, "report.yaml")
	require.NoError(t, report.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 1, decoded.Stats.MergedV4)
	assert.Equal(t, "gh-pages", decoded.Commit.Branch)
	assert.Equal(t, out.Digest, decoded.Outputs[0].Digest)
}
