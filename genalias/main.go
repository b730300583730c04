package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/netalias/genalias/pkg/dump"
	"github.com/netalias/genalias/pkg/resolver"
)

var version = "dev"

type ExitCode int

const (
	ExitSuccess ExitCode = 0
	ExitFailure ExitCode = 1
	ExitUsage   ExitCode = 2
)

type baseCLI struct {
	LogLevel  string // Overrides log.level
	LogFormat string // Overrides log.format
	Generate  struct {
		Dump          string        // Dump path, "-" for stdin
		Output        string        // IPv4 (and IPv6 unless Output6 is set) list
		Output6       string        // IPv6 list
		Jobs          int           // Concurrent DNS lookups, 0 disables DNS
		Encoding      string        // Dump charset
		DNSAttempts   int           // Attempts on temporary DNS failures
		DNSRetryDelay time.Duration // Pause between attempts
		DNSTimeout    time.Duration // Per-lookup timeout
	}
	Fetch struct {
		URL      string
		Output   string
		Timeout  time.Duration
		MaxSize  int64
		Token    string
		CABundle string
		Headers  map[string]string
	}
	Publish struct {
		Config  string
		DryRun  bool
		DumpURL string
		Jobs    int
		Report  string
		WorkDir string
	}
}

func configureGenerate(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("dump", "Dump CSV file (.gz and .xz are decompressed, - reads stdin)").
		Required().
		StringVar(&cli.Generate.Dump)
	cmd.Flag("output", "IPv4 alias list, - for stdout").
		Short('o').
		Default("-").
		StringVar(&cli.Generate.Output)
	cmd.Flag("output-v6", "IPv6 alias list; appended to --output when unset").
		Short('6').
		StringVar(&cli.Generate.Output6)
	cmd.Flag("dns-jobs", "Concurrent DNS lookups for domains and URLs, 0 disables resolution").
		Short('j').
		Default("0").
		IntVar(&cli.Generate.Jobs)
	cmd.Flag("encoding", "Dump character encoding").
		Default(dump.DefaultEncoding).
		StringVar(&cli.Generate.Encoding)
	cmd.Flag("dns-attempts", "Attempts per host on temporary DNS failures").
		Default(fmt.Sprint(resolver.DefaultMaxAttempts)).
		IntVar(&cli.Generate.DNSAttempts)
	cmd.Flag("dns-retry-delay", "Pause between DNS attempts").
		Default(resolver.DefaultRetryDelay.String()).
		DurationVar(&cli.Generate.DNSRetryDelay)
	cmd.Flag("dns-timeout", "Timeout of a single DNS lookup").
		Default(resolver.DefaultTimeout.String()).
		DurationVar(&cli.Generate.DNSTimeout)
}

func configureFetch(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("url", "URL to download").
		Required().
		StringVar(&cli.Fetch.URL)
	cmd.Flag("output", "Destination file or directory").
		Short('o').
		Required().
		StringVar(&cli.Fetch.Output)
	cmd.Flag("timeout", "Request timeout").
		Default("5m").
		DurationVar(&cli.Fetch.Timeout)
	cmd.Flag("max-size", "Maximum size in bytes, 0 for unlimited").
		Default("0").
		Int64Var(&cli.Fetch.MaxSize)
	cmd.Flag("token", "Bearer token").
		Envar("GENALIAS_DOWNLOAD_AUTH_TOKEN").
		StringVar(&cli.Fetch.Token)
	cmd.Flag("ca-bundle", "PEM CA bundle to trust instead of the system roots").
		StringVar(&cli.Fetch.CABundle)
	cmd.Flag("header", "Extra request header (KEY=VALUE)").
		Short('H').
		StringMapVar(&cli.Fetch.Headers)
}

func configurePublish(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Flag("config", "Config file (YAML)").
		Short('c').
		Envar("GENALIAS_CONFIG").
		StringVar(&cli.Publish.Config)
	cmd.Flag("dry-run", "Generate and report changes without committing").
		BoolVar(&cli.Publish.DryRun)
	cmd.Flag("dump-url", "Overrides dumpUrl").
		StringVar(&cli.Publish.DumpURL)
	cmd.Flag("dns-jobs", "Overrides dns.jobs").
		Short('j').
		Default("-1").
		IntVar(&cli.Publish.Jobs)
	cmd.Flag("report", "Overrides report").
		StringVar(&cli.Publish.Report)
	cmd.Flag("work-dir", "Overrides workDir").
		StringVar(&cli.Publish.WorkDir)
}

// CancelOnInterrupt blocks until a sigint is received, then calls cancel.
// It returns early once ctx is done.
func CancelOnInterrupt(ctx context.Context, cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	defer signal.Stop(signalChan)
	select {
	case <-signalChan:
		cancel()
	case <-ctx.Done():
	}
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go CancelOnInterrupt(ctx, cancel)

	cli := baseCLI{}

	app := kingpin.New("genalias", "Builds merged IPv4/IPv6 alias lists from a blocklist dump and publishes them to a pages branch")
	app.HelpFlag.Short('h')
	app.Version(version)

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("log-level", "Log level [debug, info, warn, error]").
		StringVar(&cli.LogLevel)
	app.Flag("log-format", "Log format [console, json]").
		EnumVar(&cli.LogFormat, LogFormatConsole, LogFormatJSON)

	appGenerate := app.Command("generate", "build alias lists from a dump file")
	configureGenerate(&cli, appGenerate)

	appFetch := app.Command("fetch", "download a dump")
	configureFetch(&cli, appFetch)

	appPublish := app.Command("publish", "checkout, download, generate, commit and push")
	configurePublish(&cli, appPublish)

	terminated := false
	terminateStatus := 0
	app.Terminate(func(status int) {
		terminated = true
		terminateStatus = status
	})
	cmd, err := app.Parse(args[1:])
	if terminated {
		return ExitCode(terminateStatus)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitUsage
	}

	switch cmd {
	case appGenerate.FullCommand():
		err = executeGenerate(ctx, cli, stdin, stdout, stderr)
	case appFetch.FullCommand():
		err = executeFetch(ctx, cli, stderr)
	case appPublish.FullCommand():
		err = executePublish(ctx, cli, stderr)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}
	return ExitSuccess
}

// cliLogger builds the logger for commands that do not read the config
// file.
func cliLogger(cli baseCLI, stderr io.Writer) (*zap.SugaredLogger, error) {
	level := cli.LogLevel
	if level == "" {
		level = "info"
	}
	return newLogger(stderr, level, cli.LogFormat)
}
