package main

import (
	"context"
	"fmt"
	"io"

	"github.com/netalias/genalias/pkg/alias"
	"github.com/netalias/genalias/pkg/dump"
)

func executeGenerate(ctx context.Context, cli baseCLI, stdin io.Reader, stdout, stderr io.Writer) error {
	log, err := cliLogger(cli, stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := cli.Generate
	if opts.Jobs < 0 {
		return fmt.Errorf("--dns-jobs must not be negative")
	}

	in, err := openDump(opts.Dump, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := dump.NewReader(in, opts.Encoding)
	if err != nil {
		return err
	}

	g := alias.NewGenerator(log, alias.Options{
		DNSJobs:       opts.Jobs,
		DNSAttempts:   opts.DNSAttempts,
		DNSRetryDelay: opts.DNSRetryDelay,
		DNSTimeout:    opts.DNSTimeout,
	})

	_, err = alias.GenerateFiles(ctx, g, reader, stdout, opts.Output, opts.Output6)
	return err
}

// openDump opens path, reading "-" from stdin.
func openDump(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == dump.Stdin {
		return io.NopCloser(stdin), nil
	}
	return dump.Open(path)
}
