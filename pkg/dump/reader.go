// Package dump reads the blocklist CSV dump: a banner line followed by
// ';'-separated records whose first three columns hold '|'-separated
// addresses, domains and URLs.
package dump

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

const (
	// DefaultEncoding is the charset the upstream dump is published in.
	DefaultEncoding = "cp1251"

	fieldSeparator = ';'
	itemSeparator  = "|"
	wildcardPrefix = "*."
)

// Row is one dump record with its list columns already split.
type Row struct {
	Line      int
	Addresses []string
	Domains   []string
	URLs      []string
}

// Hosts returns the domains of the row plus the host part of every URL.
func (r Row) Hosts(log *zap.SugaredLogger) []string {
	hosts := make([]string, 0, len(r.Domains)+len(r.URLs))
	hosts = append(hosts, r.Domains...)
	for _, raw := range r.URLs {
		host, err := URLHost(raw)
		if err != nil {
			log.Errorw("can't parse URL", "url", raw, "line", r.Line, "error", err)
			continue
		}
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// Reader iterates over dump rows.
type Reader struct {
	csv       *csv.Reader
	skipped   bool
	rowsCount int
}

// LookupEncoding resolves a charset label such as "cp1251" or "utf-8".
func LookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	switch strings.ToLower(name) {
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown dump encoding %q: %w", name, err)
	}
	return enc, nil
}

// NewReader decodes r from the given charset and prepares a CSV reader
// with the dump's dialect.
func NewReader(r io.Reader, charset string) (*Reader, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(enc.NewDecoder().Reader(r))
	cr.Comma = fieldSeparator
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	return &Reader{csv: cr}, nil
}

// Next returns the next row, or io.EOF once the dump is exhausted. The
// banner line ("Updated on ...") is consumed by the first call.
func (r *Reader) Next() (Row, error) {
	if !r.skipped {
		r.skipped = true
		if _, err := r.csv.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			return Row{}, fmt.Errorf("failed to read dump banner: %w", err)
		}
	}

	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, fmt.Errorf("failed to read dump record: %w", err)
	}
	r.rowsCount++

	line, _ := r.csv.FieldPos(0)
	row := Row{Line: line}
	if len(record) > 0 {
		row.Addresses = SplitField(record[0])
	}
	if len(record) > 1 {
		for _, domain := range SplitField(record[1]) {
			if domain = strings.TrimPrefix(domain, wildcardPrefix); domain != "" {
				row.Domains = append(row.Domains, domain)
			}
		}
	}
	if len(record) > 2 {
		row.URLs = SplitField(record[2])
	}
	return row, nil
}

// Rows is the number of records returned so far, banner excluded.
func (r *Reader) Rows() int {
	return r.rowsCount
}

// SplitField splits a '|'-separated column, trimming items and dropping
// empty ones.
func SplitField(field string) []string {
	var items []string
	for _, item := range strings.Split(field, itemSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// URLHost extracts the lower-cased host name of a dump URL the way a
// lenient URL split does: the authority follows "//", ends at the first
// '/', '?' or '#', and loses its userinfo and port. Only unbalanced or
// invalid IPv6 brackets are errors. An empty host is not an error.
func URLHost(raw string) (string, error) {
	raw = strings.TrimLeftFunc(raw, isSpaceOrControl)
	raw = strings.TrimRightFunc(raw, isSpaceOrControl)
	raw = strings.NewReplacer("\t", "", "\r", "", "\n", "").Replace(raw)

	rest := raw
	if i := strings.IndexByte(raw, ':'); i > 0 && isScheme(raw[:i]) {
		rest = raw[i+1:]
	}
	if !strings.HasPrefix(rest, "//") {
		// Without a network location marker the whole value is a path.
		return "", nil
	}
	netloc := rest[2:]
	if i := strings.IndexAny(netloc, "/?#"); i >= 0 {
		netloc = netloc[:i]
	}

	open := strings.Contains(netloc, "[")
	if open != strings.Contains(netloc, "]") {
		return "", fmt.Errorf("invalid IPv6 URL %q", raw)
	}
	if open {
		bracketed, _, _ := strings.Cut(netloc[strings.IndexByte(netloc, '[')+1:], "]")
		if !validBracketedHost(bracketed) {
			return "", fmt.Errorf("invalid bracketed host %q in %q", bracketed, raw)
		}
	}

	hostinfo := netloc
	if i := strings.LastIndexByte(hostinfo, '@'); i >= 0 {
		hostinfo = hostinfo[i+1:]
	}
	var host string
	if _, bracketed, ok := strings.Cut(hostinfo, "["); ok {
		host, _, _ = strings.Cut(bracketed, "]")
	} else {
		host, _, _ = strings.Cut(hostinfo, ":")
	}
	return strings.ToLower(host), nil
}

// isScheme reports whether s is a valid URL scheme: a letter followed by
// letters, digits, '+', '-' or '.'.
func isScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// validBracketedHost accepts an IPv6 literal (optionally zoned) or an
// IPvFuture "v<hex>.<text>" form.
func validBracketedHost(host string) bool {
	if strings.HasPrefix(host, "v") || strings.HasPrefix(host, "V") {
		ver, text, ok := strings.Cut(host[1:], ".")
		if !ok || ver == "" || text == "" {
			return false
		}
		for _, c := range ver {
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
		return true
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Is6()
}

func isSpaceOrControl(r rune) bool {
	return r <= ' '
}
