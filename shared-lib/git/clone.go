package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Checkout makes the client's working directory a clean checkout of the
// branch head. An existing clone is reused: local changes are discarded
// and the branch is fast-forwarded. Otherwise the branch is cloned.
func (client *Client) Checkout(ctx context.Context) (*goGit.Repository, error) {
	if _, err := os.Stat(filepath.Join(client.repoPath, goGit.GitDirName)); err == nil {
		repo, err := goGit.PlainOpen(client.repoPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository at %s: %w", client.repoPath, err)
		}
		if err := client.discardLocalChanges(repo); err != nil {
			return nil, err
		}
		if _, err := client.Pull(ctx, repo); err != nil {
			return nil, err
		}
		return repo, nil
	}
	return client.Clone(ctx)
}

// discardLocalChanges resets the worktree to HEAD and removes untracked
// files, e.g. lists left behind by a dry run.
func (client *Client) discardLocalChanges(repo *goGit.Repository) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get working tree: %w", err)
	}
	if err := worktree.Reset(&goGit.ResetOptions{Mode: goGit.HardReset}); err != nil {
		return fmt.Errorf("failed to reset working tree: %w", err)
	}
	if err := worktree.Clean(&goGit.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("failed to clean working tree: %w", err)
	}
	return nil
}

// Clone performs a single-branch clone of the remote into the working
// directory, which must be empty.
func (client *Client) Clone(ctx context.Context) (*goGit.Repository, error) {
	cloneOptions := &goGit.CloneOptions{
		URL:           client.url,
		Progress:      client.progress,
		ReferenceName: plumbing.NewBranchReferenceName(client.branch),
		SingleBranch:  true,
	}

	authMethod, err := getAuthMethod(client.url, client.auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	cloneOptions.Auth = authMethod
	if client.auth != nil && client.auth.CABundle != nil {
		cloneOptions.CABundle = client.auth.CABundle
	}

	repo, err := goGit.PlainCloneContext(ctx, client.repoPath, false, cloneOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository from %s: %w", client.url, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository head: %w", err)
	}

	client.log.Infow("cloned repository", "path", client.repoPath, "branch", client.branch, "commit", head.Hash().String())
	return repo, nil
}

// Pull fast-forwards the checked out branch and returns the commits that
// were pulled.
func (client *Client) Pull(ctx context.Context, repo *goGit.Repository) ([]CommitInfo, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository head: %w", err)
	}
	beforePullHash := head.Hash()

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get working tree: %w", err)
	}

	pullOptions := &goGit.PullOptions{
		ReferenceName: plumbing.NewBranchReferenceName(client.branch),
		SingleBranch:  true,
		Progress:      client.progress,
	}
	authMethod, err := getAuthMethod(client.url, client.auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	pullOptions.Auth = authMethod
	if client.auth != nil && client.auth.CABundle != nil {
		pullOptions.CABundle = client.auth.CABundle
	}

	err = worktree.PullContext(ctx, pullOptions)
	if errors.Is(err, goGit.NoErrAlreadyUpToDate) {
		client.log.Infow("repository is already up to date", "path", client.repoPath, "commit", beforePullHash.String())
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pull changes: %w", err)
	}

	newHead, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get repository head after pull: %w", err)
	}

	commits, err := getCommitsBetween(repo, beforePullHash, newHead.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get pulled commits: %w", err)
	}
	client.log.Infow("pulled new commits", "count", len(commits), "commit", newHead.Hash().String())
	return commits, nil
}

// getAuthMethod returns the appropriate authentication method(basic auth etc..) based on the Git URL and authentication credentials.
//
// Supported URL formats:
//   - HTTPS: https://github.com/user/repo.git
//   - HTTP: http://github.com/user/repo.git
//   - local paths and file:// URLs, without authentication
func getAuthMethod(url string, auth *Auth) (transport.AuthMethod, error) {
	if strings.HasPrefix(url, "git@") || strings.Contains(url, "ssh://") {
		return nil, fmt.Errorf("only https based git is supported")
	}
	if auth == nil || auth.Token == "" {
		return nil, nil
	}

	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://") {
		username := auth.Username
		if username == "" {
			// GitHub ignores the username for token auth but requires one to be set
			username = "x-access-token"
		}
		return &http.BasicAuth{
			Username: username,
			Password: auth.Token,
		}, nil
	}

	return nil, nil
}
