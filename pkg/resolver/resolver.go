// Package resolver resolves dump host names to addresses with a bounded
// pool of concurrent lookups.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxAttempts = 10
	DefaultTimeout     = 10 * time.Second
)

// LookupFunc resolves one ASCII host name. It matches
// (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	Jobs        int
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	Lookup      LookupFunc
}

// Result carries the addresses found for a single host.
type Result struct {
	Host  string
	Addrs []netip.Addr
	Err   error
}

type Resolver struct {
	log         *zap.SugaredLogger
	jobs        int
	maxAttempts int
	retryDelay  time.Duration
	timeout     time.Duration
	lookup      LookupFunc
	idna        *idna.Profile
}

func New(log *zap.SugaredLogger, opts Options) (*Resolver, error) {
	if opts.Jobs <= 0 {
		return nil, fmt.Errorf("resolver needs at least one job, got %d", opts.Jobs)
	}
	r := &Resolver{
		log:         log,
		jobs:        opts.Jobs,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		timeout:     opts.Timeout,
		lookup:      opts.Lookup,
		idna:        idna.New(idna.MapForLookup(), idna.Transitional(true), idna.StrictDomainName(false)),
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if r.retryDelay <= 0 {
		r.retryDelay = DefaultRetryDelay
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.lookup == nil {
		r.lookup = net.DefaultResolver.LookupNetIP
	}
	return r, nil
}

// ResolveAll resolves every host and calls onResult from a single
// goroutine, in completion order. Failed lookups are reported through
// Result.Err and never abort the run; only context cancellation does.
func (r *Resolver) ResolveAll(ctx context.Context, hosts []string, onResult func(Result)) error {
	if len(hosts) == 0 {
		return nil
	}

	results := make(chan Result, r.jobs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)

	var collect sync.WaitGroup
	collect.Add(1)
	go func() {
		defer collect.Done()
		progress := newProgress(r.log, len(hosts))
		for res := range results {
			onResult(res)
			progress.done()
		}
	}()

	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			addrs, err := r.Resolve(gctx, host)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			select {
			case results <- Result{Host: host, Addrs: addrs, Err: err}:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	err := g.Wait()
	close(results)
	collect.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

// Resolve looks up a single host, retrying temporary failures. Lookup
// errors are logged here.
func (r *Resolver) Resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}

	ascii, err := r.idna.ToASCII(host)
	if err != nil {
		r.log.Errorw("can't convert host name to ASCII", "host", host, "error", err)
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		addrs, err := r.lookup(lookupCtx, "ip", ascii)
		cancel()
		if err == nil {
			return addrs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.log.Errorw("can't resolve host", "host", host, "attempt", attempt, "error", err)
		if !isTemporary(err) || attempt >= r.maxAttempts {
			return nil, err
		}

		r.log.Infow("trying to resolve host again after delay", "host", host, "delay", r.retryDelay)
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func isTemporary(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return false
		}
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}
	return false
}

type progress struct {
	log         *zap.SugaredLogger
	total       int
	resolved    int
	lastPercent int
	start       time.Time
}

func newProgress(log *zap.SugaredLogger, total int) *progress {
	return &progress{log: log, total: total, lastPercent: -1, start: time.Now()}
}

func (p *progress) done() {
	p.resolved++
	percent := p.resolved * 100 / p.total
	if percent == p.lastPercent && p.resolved != p.total {
		return
	}
	p.lastPercent = percent

	elapsed := time.Since(p.start)
	remaining := time.Duration(float64(elapsed) / float64(p.resolved) * float64(p.total-p.resolved))
	p.log.Infow("resolving domains",
		"percent", percent,
		"resolved", p.resolved,
		"total", p.total,
		"remaining", remaining.Round(time.Second),
	)
}
