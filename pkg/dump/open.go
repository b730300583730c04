package dump

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/xi2/xz"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Open opens a dump file for reading. "-" is stdin. Files ending in .gz or
// .xz are decompressed on the fly.
func Open(path string) (io.ReadCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("dump path cannot be empty")
	}
	if path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump %s: %w", path, err)
	}

	rc, err := decompress(file, path)
	if err != nil {
		file.Close()
		return nil, err
	}
	return rc, nil
}

func decompress(file *os.File, path string) (io.ReadCloser, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(bufio.NewReader(file))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, file}}, nil

	case strings.HasSuffix(lower, ".xz"):
		xr, err := xz.NewReader(bufio.NewReader(file), 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader for %s: %w", path, err)
		}
		return &stackedCloser{Reader: xr, closers: []io.Closer{file}}, nil
	}
	return file, nil
}

// stackedCloser closes every layer of a decompression stack, innermost
// last.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
