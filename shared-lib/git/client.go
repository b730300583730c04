package git

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Client works on one branch of one remote repository, checked out in a
// local working directory.
type Client struct {
	url      string
	branch   string
	repoPath string
	auth     *Auth
	progress io.Writer
	log      *zap.SugaredLogger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithProgress streams remote progress output (clone, pull, push) to w.
func WithProgress(w io.Writer) ClientOption {
	return func(c *Client) {
		c.progress = w
	}
}

// WithLogger sets the logger used for operation summaries.
func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(auth *Auth, url, branch, repoPath string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("git URL cannot be empty")
	}
	if branch == "" {
		return nil, fmt.Errorf("git branch cannot be empty")
	}
	if repoPath == "" {
		return nil, fmt.Errorf("repository path cannot be empty")
	}
	if strings.HasPrefix(url, "git@") || strings.Contains(url, "ssh://") {
		return nil, fmt.Errorf("only https based git is supported")
	}

	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return nil, fmt.Errorf("repository path does not exist and cannot be created: %w", err)
	}
	fileInfo, err := os.Stat(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for repository path: %w", err)
	}
	if !fileInfo.IsDir() {
		return nil, fmt.Errorf("repository path must be a directory, not a file")
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	client := &Client{
		auth:     auth,
		url:      url,
		branch:   branch,
		repoPath: absPath,
		progress: io.Discard,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Path is the absolute working directory of the checkout.
func (client *Client) Path() string {
	return client.repoPath
}

// Branch is the branch the client checks out and pushes.
func (client *Client) Branch() string {
	return client.branch
}
