package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goGit "github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/netalias/genalias/genalias/types"
	"github.com/netalias/genalias/pkg/alias"
	"github.com/netalias/genalias/pkg/dump"
	"github.com/netalias/genalias/shared-lib/crypto"
	"github.com/netalias/genalias/shared-lib/file"
	"github.com/netalias/genalias/shared-lib/git"
)

func executePublish(ctx context.Context, cli baseCLI, stderr io.Writer) error {
	overrides := map[string]interface{}{}
	if cli.Publish.DryRun {
		overrides["dryRun"] = true
	}
	if cli.Publish.DumpURL != "" {
		overrides["dumpUrl"] = cli.Publish.DumpURL
	}
	if cli.Publish.Jobs >= 0 {
		overrides["dns.jobs"] = cli.Publish.Jobs
	}
	if cli.Publish.Report != "" {
		overrides["report"] = cli.Publish.Report
	}
	if cli.Publish.WorkDir != "" {
		overrides["workDir"] = cli.Publish.WorkDir
	}
	if cli.LogLevel != "" {
		overrides["log.level"] = cli.LogLevel
	}
	if cli.LogFormat != "" {
		overrides["log.format"] = cli.LogFormat
	}

	cfg, err := types.NewConfigManager(cli.Publish.Config, overrides).LoadAndValidateConfig()
	if err != nil {
		return types.NewPipelineError(types.PipelineStageConfig, types.PipelineOperationReadingConfig, err, false)
	}

	log, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return types.NewPipelineError(types.PipelineStageConfig, types.PipelineOperationValidatingConfig, err, false)
	}
	defer log.Sync()

	_, err = NewPublisher(log, *cfg).Run(ctx)
	return err
}

// Publisher runs the checkout, download, generate and publish stages of
// one batch run.
type Publisher struct {
	log    *zap.SugaredLogger
	config types.Config
	runID  string
}

func NewPublisher(log *zap.SugaredLogger, config types.Config) *Publisher {
	runID := uuid.New().String()
	return &Publisher{
		log:    log.With("runId", runID),
		config: config,
		runID:  runID,
	}
}

// Run executes the pipeline. The report is returned (and written, when
// configured) even if a stage failed.
func (p *Publisher) Run(ctx context.Context) (*alias.Report, error) {
	report := &alias.Report{
		RunID:     p.runID,
		StartedAt: time.Now().UTC(),
		Dump:      alias.DumpInfo{URL: p.config.DumpURL},
	}
	p.log.Debugw("effective configuration", "config", pretty.Sprint(redacted(p.config)))

	err := p.run(ctx, report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Error = err.Error()
		p.log.Errorw("run failed", "error", err)
	}

	if p.config.Report != "" {
		if reportErr := report.WriteFile(p.config.Report); reportErr != nil {
			p.log.Errorw("failed to write run report", "path", p.config.Report, "error", reportErr)
			if err == nil {
				err = types.NewPipelineError(types.PipelineStageReport, types.PipelineOperationWritingReport, reportErr, false)
			}
		}
	}
	return report, err
}

func (p *Publisher) run(ctx context.Context, report *alias.Report) error {
	cfg := p.config

	client, repo, err := p.checkout(ctx)
	if err != nil {
		return err
	}

	dumpInfo, err := p.download(ctx)
	if err != nil {
		return err
	}
	report.Dump = *dumpInfo

	v4Path := filepath.Join(client.Path(), filepath.FromSlash(cfg.Pages.IPv4File))
	v6Path := filepath.Join(client.Path(), filepath.FromSlash(cfg.Pages.IPv6File))
	result, err := p.generate(ctx, dumpInfo.Path, v4Path, v6Path)
	if err != nil {
		return err
	}
	report.Stats = result.Stats

	for _, out := range []struct {
		path  string
		lines int
	}{{v4Path, len(result.V4)}, {v6Path, len(result.V6)}} {
		described, err := alias.DescribeOutput(out.path, out.lines)
		if err != nil {
			return types.NewPipelineError(types.PipelineStageGenerate, types.PipelineOperationDescribingLists, err, false)
		}
		report.Outputs = append(report.Outputs, described)
	}

	paths := []string{filepath.ToSlash(cfg.Pages.IPv4File), filepath.ToSlash(cfg.Pages.IPv6File)}
	commit := &alias.CommitReport{Branch: client.Branch()}
	report.Commit = commit

	err = p.publish(ctx, client, repo, paths, commit)
	if head, headErr := git.GetLatestCommitInfo(repo); headErr != nil {
		p.log.Warnw("failed to read branch head", "error", headErr)
	} else {
		commit.Head = head.Hash
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, client *git.Client, repo *goGit.Repository, paths []string, commit *alias.CommitReport) error {
	cfg := p.config
	if cfg.DryRun {
		changed, err := git.ChangedFiles(repo, paths)
		if err != nil {
			return types.NewPipelineError(types.PipelineStagePublish, types.PipelineOperationCommitting, err, false)
		}
		commit.Changed = len(changed) > 0
		p.log.Infow("dry run, not committing", "changed", changed)
		return nil
	}

	hash, changed, err := git.CommitFiles(repo, paths, cfg.Pages.CommitMessage, git.Signature{
		Name:  cfg.Pages.AuthorName,
		Email: cfg.Pages.AuthorEmail,
	})
	if err != nil {
		return types.NewPipelineError(types.PipelineStagePublish, types.PipelineOperationCommitting, err, false)
	}
	commit.Changed = changed
	if !changed {
		p.log.Infow("alias lists unchanged, nothing to publish", "branch", client.Branch())
		return nil
	}
	commit.Hash = hash.String()
	p.log.Infow("committed alias lists", "branch", client.Branch(), "commit", commit.Hash)

	if !cfg.Pages.Push {
		p.log.Infow("push disabled, leaving commit local", "path", client.Path())
		return nil
	}
	if err := client.Push(ctx, repo); err != nil {
		return types.NewPipelineError(types.PipelineStagePublish, types.PipelineOperationPushing, err, true).
			WithContext("branch", client.Branch())
	}
	commit.Pushed = true
	return nil
}

func (p *Publisher) checkout(ctx context.Context) (*git.Client, *goGit.Repository, error) {
	pages := p.config.Pages
	gitAuth := &git.Auth{Username: pages.Username, Token: pages.Token}
	if pages.CABundlePath != "" {
		bundle, _, err := crypto.LoadCABundle(pages.CABundlePath)
		if err != nil {
			return nil, nil, types.NewPipelineError(types.PipelineStageCheckout, types.PipelineOperationCloningPages, err, false)
		}
		gitAuth.CABundle = bundle
	}

	client, err := git.NewClient(gitAuth, pages.RepoURL, pages.Branch, pages.Dir,
		git.WithLogger(p.log),
		git.WithProgress(&progressLog{log: p.log}),
	)
	if err != nil {
		return nil, nil, types.NewPipelineError(types.PipelineStageCheckout, types.PipelineOperationCloningPages, err, false)
	}
	repo, err := client.Checkout(ctx)
	if err != nil {
		return nil, nil, types.NewPipelineError(types.PipelineStageCheckout, types.PipelineOperationCloningPages, err, true).
			WithContext("repository", pages.RepoURL)
	}
	return client, repo, nil
}

func (p *Publisher) download(ctx context.Context) (*alias.DumpInfo, error) {
	cfg := p.config
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, types.NewPipelineError(types.PipelineStageDownload, types.PipelineOperationDownloadingDump, err, false)
	}

	options := &file.DownloadOptions{
		OutputPath:     cfg.WorkDir,
		CreateDirs:     true,
		OverwriteExist: true,
		MaxFileSize:    cfg.Download.MaxSize,
		Timeout:        cfg.Download.Timeout,
	}
	if cfg.Download.CABundlePath != "" {
		tlsConfig, err := crypto.LoadCustomCA(cfg.Download.CABundlePath)
		if err != nil {
			return nil, types.NewPipelineError(types.PipelineStageDownload, types.PipelineOperationDownloadingDump, err, false)
		}
		options.TLSConfig = tlsConfig
	}

	result, err := fetchDump(ctx, p.log, cfg.DumpURL, &cfg.Download.Auth, options)
	if err != nil {
		return nil, types.NewPipelineError(types.PipelineStageDownload, types.PipelineOperationDownloadingDump, err, true).
			WithContext("url", cfg.DumpURL)
	}

	digest, err := crypto.GetDigestOfFile(result.FilePath)
	if err != nil {
		return nil, types.NewPipelineError(types.PipelineStageDownload, types.PipelineOperationDownloadingDump, err, false)
	}
	return &alias.DumpInfo{
		URL:          cfg.DumpURL,
		Path:         result.FilePath,
		Size:         result.Size,
		ETag:         result.ETag,
		LastModified: result.LastModified,
		Digest:       digest,
	}, nil
}

func (p *Publisher) generate(ctx context.Context, dumpPath, v4Path, v6Path string) (*alias.Result, error) {
	cfg := p.config
	in, err := dump.Open(dumpPath)
	if err != nil {
		return nil, types.NewPipelineError(types.PipelineStageGenerate, types.PipelineOperationOpeningDump, err, false)
	}
	defer in.Close()

	reader, err := dump.NewReader(in, cfg.Encoding)
	if err != nil {
		return nil, types.NewPipelineError(types.PipelineStageGenerate, types.PipelineOperationOpeningDump, err, false)
	}

	g := alias.NewGenerator(p.log, alias.Options{
		DNSJobs:       cfg.DNS.Jobs,
		DNSAttempts:   cfg.DNS.Attempts,
		DNSRetryDelay: cfg.DNS.RetryDelay,
		DNSTimeout:    cfg.DNS.Timeout,
	})
	result, err := alias.GenerateFiles(ctx, g, reader, io.Discard, v4Path, v6Path)
	if err != nil {
		return nil, types.NewPipelineError(types.PipelineStageGenerate, types.PipelineOperationGeneratingLists, err, false)
	}
	return result, nil
}

// progressLog forwards remote progress messages to the debug log, one
// entry per line. Carriage returns end a line too.
type progressLog struct {
	log *zap.SugaredLogger
	buf []byte
}

func (w *progressLog) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			return len(b), nil
		}
		if line := strings.TrimSpace(string(w.buf[:i])); line != "" {
			w.log.Debugw("remote progress", "message", line)
		}
		w.buf = w.buf[i+1:]
	}
}

// redacted hides credentials before the config is logged.
func redacted(cfg types.Config) types.Config {
	const mask = "***"
	if cfg.Pages.Token != "" {
		cfg.Pages.Token = mask
	}
	if cfg.Download.Auth.Password != "" {
		cfg.Download.Auth.Password = mask
	}
	if cfg.Download.Auth.Token != "" {
		cfg.Download.Auth.Token = mask
	}
	if len(cfg.Download.Auth.Headers) > 0 {
		headers := make(map[string]string, len(cfg.Download.Auth.Headers))
		for k := range cfg.Download.Auth.Headers {
			headers[k] = mask
		}
		cfg.Download.Auth.Headers = headers
	}
	return cfg
}
