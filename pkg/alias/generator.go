// Package alias turns a parsed dump into the merged IPv4 and IPv6 alias
// lists.
package alias

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"sort"
	"time"

	"github.com/netalias/genalias/pkg/cidr"
	"github.com/netalias/genalias/pkg/dump"
	"github.com/netalias/genalias/pkg/netfilter"
	"github.com/netalias/genalias/pkg/resolver"
	"go.uber.org/zap"
)

// Options controls DNS resolution. DNSJobs == 0 disables it entirely:
// domain and URL columns are then ignored.
type Options struct {
	DNSJobs       int
	DNSAttempts   int
	DNSRetryDelay time.Duration
	DNSTimeout    time.Duration
	Lookup        resolver.LookupFunc
}

// Stats summarizes a generator run.
type Stats struct {
	Rows            int    `yaml:"rows"`
	Subnets         int    `yaml:"subnets"`
	Hosts           int    `yaml:"hosts"`
	HostsFailed     int    `yaml:"hostsFailed"`
	SubnetsAfterDNS int    `yaml:"subnetsAfterDns"`
	MergedV4        int    `yaml:"mergedV4"`
	MergedV6        int    `yaml:"mergedV6"`
	TotalAddresses  string `yaml:"totalAddresses"`
}

// Result holds the merged lists of a run.
type Result struct {
	V4    []netip.Prefix
	V6    []netip.Prefix
	Stats Stats
}

type Generator struct {
	log    *zap.SugaredLogger
	filter *netfilter.Filter
	opts   Options
}

func NewGenerator(log *zap.SugaredLogger, opts Options) *Generator {
	return &Generator{
		log:    log,
		filter: netfilter.NewFilter(log),
		opts:   opts,
	}
}

// Generate reads every row of r and returns the merged prefix lists.
func (g *Generator) Generate(ctx context.Context, r *dump.Reader) (*Result, error) {
	set := cidr.NewSet()
	hosts := make(map[string]struct{})
	stats := Stats{}

	add := func(p netip.Prefix) {
		if g.filter.AcceptPrefix(p) {
			set.Add(p)
		}
	}

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		for _, raw := range row.Addresses {
			if p, ok := g.filter.Accept(raw); ok {
				set.Add(p)
			}
		}

		if g.opts.DNSJobs == 0 {
			continue
		}
		for _, host := range row.Hosts(g.log) {
			hosts[host] = struct{}{}
		}
	}
	stats.Rows = r.Rows()
	stats.Subnets = set.Len()
	g.log.Infow("total unique subnets", "count", stats.Subnets, "rows", stats.Rows)

	if g.opts.DNSJobs > 0 {
		stats.Hosts = len(hosts)
		g.log.Infow("total hostnames/domains", "count", stats.Hosts)

		res, err := resolver.New(g.log, resolver.Options{
			Jobs:        g.opts.DNSJobs,
			MaxAttempts: g.opts.DNSAttempts,
			RetryDelay:  g.opts.DNSRetryDelay,
			Timeout:     g.opts.DNSTimeout,
			Lookup:      g.opts.Lookup,
		})
		if err != nil {
			return nil, err
		}

		err = res.ResolveAll(ctx, sortedKeys(hosts), func(r resolver.Result) {
			if r.Err != nil {
				stats.HostsFailed++
				return
			}
			for _, addr := range r.Addrs {
				add(netfilter.FromAddr(addr))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("dns resolution interrupted: %w", err)
		}

		stats.SubnetsAfterDNS = set.Len()
		g.log.Infow("total unique subnets after DNS resolution", "count", stats.SubnetsAfterDNS, "failedHosts", stats.HostsFailed)
	}

	v4, v6 := set.Split()
	result := &Result{
		V4: cidr.Merge(v4),
		V6: cidr.Merge(v6),
	}
	stats.MergedV4 = len(result.V4)
	stats.MergedV6 = len(result.V6)
	total := cidr.AddressCount(result.V4)
	total.Add(total, cidr.AddressCount(result.V6))
	stats.TotalAddresses = total.String()
	result.Stats = stats

	g.log.Infow("merged subnets", "count", stats.MergedV4+stats.MergedV6, "ipv4", stats.MergedV4, "ipv6", stats.MergedV6)
	g.log.Infow("total addresses", "count", stats.TotalAddresses)
	return result, nil
}

// Run generates the lists and writes them: IPv4 prefixes to v4, then IPv6
// prefixes to v6. A nil v6 appends the IPv6 lines to v4.
func (g *Generator) Run(ctx context.Context, r *dump.Reader, v4, v6 io.Writer) (*Result, error) {
	result, err := g.Generate(ctx, r)
	if err != nil {
		return nil, err
	}
	if v6 == nil {
		v6 = v4
	}
	if err := WriteList(v4, result.V4); err != nil {
		return nil, fmt.Errorf("failed to write IPv4 list: %w", err)
	}
	if err := WriteList(v6, result.V6); err != nil {
		return nil, fmt.Errorf("failed to write IPv6 list: %w", err)
	}
	return result, nil
}

// WriteList writes one prefix per line.
func WriteList(w io.Writer, prefixes []netip.Prefix) error {
	bw := bufio.NewWriter(w)
	for _, p := range prefixes {
		if _, err := bw.WriteString(p.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
