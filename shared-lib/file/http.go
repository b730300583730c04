package file

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	httputils "github.com/netalias/genalias/shared-lib/http"
	"github.com/netalias/genalias/shared-lib/http/auth"
)

// DownloadResult contains information about the download operation
type DownloadResult struct {
	FilePath     string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
	StatusCode   int
}

// DownloadOptions provides configuration for file downloads
type DownloadOptions struct {
	OutputPath       string                        // File to write, or a directory to place it in
	CreateDirs       bool                          // Create directories if they don't exist
	OverwriteExist   bool                          // Overwrite existing files
	MaxFileSize      int64                         // Maximum file size to download (0 = no limit)
	Timeout          time.Duration                 // HTTP request timeout
	Headers          map[string]string             // Additional headers
	ProgressCallback func(downloaded, total int64) // Progress callback
	TLSConfig        *tls.Config                   // Custom TLS settings, e.g. a private CA
}

// ErrFileTooLarge is returned when the body exceeds DownloadOptions.MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

// DownloadFile downloads url with a GET request into options.OutputPath.
// The file is written to a temporary name first and renamed once complete.
func DownloadFile(ctx context.Context, url string, auth *auth.AuthConfig, options *DownloadOptions) (*DownloadResult, error) {
	if options == nil {
		options = &DownloadOptions{
			CreateDirs:     true,
			OverwriteExist: true,
			MaxFileSize:    100 * 1024 * 1024, // 100MB default limit
			Timeout:        30 * time.Second,
		}
	}

	client := &http.Client{
		Timeout: options.Timeout,
	}
	if options.TLSConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = options.TLSConfig
		client.Transport = transport
	}

	req, err := httputils.NewGetRequest(ctx, url, auth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// Custom headers override the defaults
	for key, value := range options.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := validateResponse(resp); err != nil {
		return nil, err
	}

	outputPath, err := resolveOutputPath(options.OutputPath, url, resp)
	if err != nil {
		return nil, err
	}

	if options.CreateDirs {
		dir := filepath.Dir(outputPath)
		if dir != "." && dir != "/" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directories: %w", err)
			}
		}
	}

	if !options.OverwriteExist {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("file already exists: %s", outputPath)
		}
	}

	result, err := downloadFile(resp, outputPath, options)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	return result, nil
}

// resolveOutputPath returns the file to write. An empty path or an
// existing directory gets a name derived from the response.
func resolveOutputPath(outputPath, url string, resp *http.Response) (string, error) {
	if outputPath != "" {
		if stat, err := os.Stat(outputPath); err != nil || !stat.IsDir() {
			return outputPath, nil
		}
	}

	filename, err := generateFilename(url, resp)
	if err != nil {
		return "", fmt.Errorf("failed to generate output filename: %w", err)
	}
	return filepath.Join(outputPath, filename), nil
}

// validateResponse validates the HTTP response
func validateResponse(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return fmt.Errorf("authentication failed: HTTP 401")
	case code == http.StatusForbidden:
		return fmt.Errorf("access forbidden: HTTP 403")
	case code == http.StatusNotFound:
		return fmt.Errorf("file not found: HTTP 404")
	default:
		return fmt.Errorf("HTTP error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
}

// generateFilename generates an output path from URL and response headers
func generateFilename(url string, resp *http.Response) (string, error) {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if filename := extractFilenameFromContentDisposition(cd); filename != "" {
			return filepath.Base(filename), nil
		}
	}

	// Remove query parameters before taking the last path element
	if idx := strings.IndexAny(url, "?#"); idx != -1 {
		url = url[:idx]
	}
	if filename := filepath.Base(url); filename != "" && filename != "." && filename != "/" && !strings.Contains(filename, ":") {
		return filename, nil
	}

	return fmt.Sprintf("download_%d", time.Now().Unix()), nil
}

// downloadFile performs the actual file download
func downloadFile(resp *http.Response, outputPath string, options *DownloadOptions) (*DownloadResult, error) {
	contentLength := resp.ContentLength
	if contentLengthStr := resp.Header.Get("Content-Length"); contentLengthStr != "" {
		if cl, err := strconv.ParseInt(contentLengthStr, 10, 64); err == nil {
			contentLength = cl
		}
	}

	if options.MaxFileSize > 0 && contentLength > options.MaxFileSize {
		return nil, fmt.Errorf("file size (%d bytes) exceeds maximum allowed size (%d bytes): %w", contentLength, options.MaxFileSize, ErrFileTooLarge)
	}

	file, err := os.CreateTemp(filepath.Dir(outputPath), "."+filepath.Base(outputPath)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := file.Name()
	committed := false
	defer func() {
		if !committed {
			file.Close()
			os.Remove(tmpPath)
		}
	}()

	var reader io.Reader = resp.Body
	if options.ProgressCallback != nil {
		reader = &progressReader{
			reader:   resp.Body,
			total:    contentLength,
			callback: options.ProgressCallback,
		}
	}

	var written int64
	if options.MaxFileSize > 0 {
		// One extra byte tells a body of exactly the limit from an oversized one
		written, err = io.Copy(file, io.LimitReader(reader, options.MaxFileSize+1))
		if err == nil && written > options.MaxFileSize {
			return nil, fmt.Errorf("download exceeds maximum allowed size (%d bytes): %w", options.MaxFileSize, ErrFileTooLarge)
		}
	} else {
		written, err = io.Copy(file, reader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Chmod(0644); err != nil {
		return nil, fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	var lastModified time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			lastModified = t
		}
	}

	return &DownloadResult{
		FilePath:     outputPath,
		Size:         written,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: lastModified,
		ETag:         resp.Header.Get("ETag"),
		StatusCode:   resp.StatusCode,
	}, nil
}

// progressReader wraps an io.Reader to provide progress callbacks
type progressReader struct {
	reader   io.Reader
	total    int64
	current  int64
	callback func(downloaded, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.callback != nil {
		pr.callback(pr.current, pr.total)
	}
	return n, err
}

// extractFilenameFromContentDisposition extracts filename from Content-Disposition header
func extractFilenameFromContentDisposition(cd string) string {
	parts := strings.Split(cd, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "filename=") {
			filename := strings.TrimPrefix(part, "filename=")
			filename = strings.Trim(filename, `"`)
			return filename
		}
	}
	return ""
}
