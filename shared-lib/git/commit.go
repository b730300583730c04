package git

import (
	"context"
	"errors"
	"fmt"
	"time"

	goGit "github.com/go-git/go-git/v5"
	goGitConfig "github.com/go-git/go-git/v5/config"
	goGitPlumbing "github.com/go-git/go-git/v5/plumbing"
	goGitObject "github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo represents information about a Git commit
type CommitInfo struct {
	Hash      string    `json:"hash" yaml:"hash"`
	Message   string    `json:"message" yaml:"message"`
	Author    string    `json:"author" yaml:"author"`
	Email     string    `json:"email" yaml:"email"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Signature identifies the author of generated commits.
type Signature struct {
	Name  string
	Email string
}

// ChangedFiles returns the subset of paths (relative to the worktree root)
// that differ from HEAD, including untracked ones.
func ChangedFiles(repo *goGit.Repository, paths []string) ([]string, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get working tree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree status: %w", err)
	}

	var changed []string
	for _, path := range paths {
		// status.File would invent an untracked entry for clean files
		fileStatus, ok := status[path]
		if !ok {
			continue
		}
		if fileStatus.Staging != goGit.Unmodified || fileStatus.Worktree != goGit.Unmodified {
			changed = append(changed, path)
		}
	}
	return changed, nil
}

// CommitFiles stages paths and commits them if any of them changed. It
// returns the zero hash and false when there was nothing to commit.
func CommitFiles(repo *goGit.Repository, paths []string, message string, author Signature) (goGitPlumbing.Hash, bool, error) {
	changed, err := ChangedFiles(repo, paths)
	if err != nil {
		return goGitPlumbing.ZeroHash, false, err
	}
	if len(changed) == 0 {
		return goGitPlumbing.ZeroHash, false, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return goGitPlumbing.ZeroHash, false, fmt.Errorf("failed to get working tree: %w", err)
	}
	for _, path := range changed {
		if _, err := worktree.Add(path); err != nil {
			return goGitPlumbing.ZeroHash, false, fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}

	hash, err := worktree.Commit(message, &goGit.CommitOptions{
		Author: &goGitObject.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return goGitPlumbing.ZeroHash, false, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, true, nil
}

// Push pushes the client's branch to origin. A remote that is already up
// to date is not an error.
func (client *Client) Push(ctx context.Context, repo *goGit.Repository) error {
	ref := goGitPlumbing.NewBranchReferenceName(client.branch)
	pushOptions := &goGit.PushOptions{
		RemoteName: goGit.DefaultRemoteName,
		RefSpecs:   []goGitConfig.RefSpec{goGitConfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Progress:   client.progress,
	}

	authMethod, err := getAuthMethod(client.url, client.auth)
	if err != nil {
		return fmt.Errorf("failed to setup authentication: %w", err)
	}
	pushOptions.Auth = authMethod
	if client.auth != nil && client.auth.CABundle != nil {
		pushOptions.CABundle = client.auth.CABundle
	}

	err = repo.PushContext(ctx, pushOptions)
	if errors.Is(err, goGit.NoErrAlreadyUpToDate) {
		client.log.Infow("remote is already up to date", "branch", client.branch)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", client.branch, err)
	}
	client.log.Infow("pushed branch", "branch", client.branch, "remote", client.url)
	return nil
}

// GetLatestCommitInfo retrieves information about the commit at HEAD.
func GetLatestCommitInfo(repo *goGit.Repository) (CommitInfo, error) {
	ref, err := repo.Head()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("failed to get reference: %w", err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return CommitInfo{}, fmt.Errorf("failed to get commit object: %w", err)
	}

	return toCommitInfo(commit), nil
}

var errReachedBase = errors.New("reached base commit")

// Helper function to get commits between two hashes
func getCommitsBetween(repo *goGit.Repository, fromHash, toHash goGitPlumbing.Hash) ([]CommitInfo, error) {
	var commits []CommitInfo

	commitIter, err := repo.Log(&goGit.LogOptions{From: toHash})
	if err != nil {
		return nil, err
	}
	defer commitIter.Close()

	err = commitIter.ForEach(func(commit *goGitObject.Commit) error {
		if commit.Hash == fromHash {
			return errReachedBase
		}
		commits = append(commits, toCommitInfo(commit))
		return nil
	})
	if err != nil && !errors.Is(err, errReachedBase) {
		return nil, err
	}

	return commits, nil
}

func toCommitInfo(commit *goGitObject.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commit.Hash.String(),
		Message:   commit.Message,
		Author:    commit.Author.Name,
		Email:     commit.Author.Email,
		Timestamp: commit.Author.When,
	}
}
