package main

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/netalias/genalias/shared-lib/crypto"
	"github.com/netalias/genalias/shared-lib/file"
	"github.com/netalias/genalias/shared-lib/http/auth"
)

func executeFetch(ctx context.Context, cli baseCLI, stderr io.Writer) error {
	log, err := cliLogger(cli, stderr)
	if err != nil {
		return err
	}
	defer log.Sync()

	var authConfig *auth.AuthConfig
	if cli.Fetch.Token != "" {
		authConfig = &auth.AuthConfig{Type: auth.AuthTypeBearer, Token: cli.Fetch.Token}
	}

	options := &file.DownloadOptions{
		OutputPath:     cli.Fetch.Output,
		CreateDirs:     true,
		OverwriteExist: true,
		MaxFileSize:    cli.Fetch.MaxSize,
		Timeout:        cli.Fetch.Timeout,
		Headers:        cli.Fetch.Headers,
	}
	if cli.Fetch.CABundle != "" {
		if options.TLSConfig, err = crypto.LoadCustomCA(cli.Fetch.CABundle); err != nil {
			return err
		}
	}

	_, err = fetchDump(ctx, log, cli.Fetch.URL, authConfig, options)
	return err
}

// fetchDump downloads url and logs progress roughly every tenth of the
// body, or every 16MB when the size is unknown.
func fetchDump(ctx context.Context, log *zap.SugaredLogger, url string, authConfig *auth.AuthConfig, options *file.DownloadOptions) (*file.DownloadResult, error) {
	var next int64
	options.ProgressCallback = func(downloaded, total int64) {
		if downloaded < next {
			return
		}
		step := int64(16 << 20)
		if total > 0 {
			step = total / 10
			log.Infow("downloading", "url", url, "bytes", downloaded, "total", total, "percent", downloaded*100/total)
		} else {
			log.Infow("downloading", "url", url, "bytes", downloaded)
		}
		next = downloaded + max(step, 1)
	}

	log.Infow("downloading dump", "url", url, "output", options.OutputPath)
	result, err := file.DownloadFile(ctx, url, authConfig, options)
	if err != nil {
		return nil, err
	}
	log.Infow("downloaded dump", "path", result.FilePath, "size", result.Size, "etag", result.ETag, "lastModified", result.LastModified)
	return result, nil
}
