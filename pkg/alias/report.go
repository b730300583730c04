package alias

import (
	"fmt"
	"os"
	"time"

	"github.com/netalias/genalias/shared-lib/crypto"
	"gopkg.in/yaml.v3"
)

// Report describes one pipeline run. It is written as YAML next to the
// alias files when a report path is configured.
type Report struct {
	RunID      string         `yaml:"runId"`
	StartedAt  time.Time      `yaml:"startedAt"`
	FinishedAt time.Time      `yaml:"finishedAt"`
	Dump       DumpInfo       `yaml:"dump"`
	Stats      Stats          `yaml:"stats"`
	Outputs    []OutputReport `yaml:"outputs"`
	Commit     *CommitReport  `yaml:"commit,omitempty"`
	Error      string         `yaml:"error,omitempty"`
}

type DumpInfo struct {
	URL          string    `yaml:"url,omitempty"`
	Path         string    `yaml:"path"`
	Size         int64     `yaml:"size"`
	ETag         string    `yaml:"etag,omitempty"`
	LastModified time.Time `yaml:"lastModified,omitempty"`
	Digest       string    `yaml:"digest,omitempty"`
}

type OutputReport struct {
	Path   string `yaml:"path"`
	Lines  int    `yaml:"lines"`
	Digest string `yaml:"digest"`
}

// CommitReport describes the publish stage. Hash is the commit made by
// this run, Head the branch head once the stage is over.
type CommitReport struct {
	Branch  string `yaml:"branch"`
	Hash    string `yaml:"hash,omitempty"`
	Head    string `yaml:"head,omitempty"`
	Changed bool   `yaml:"changed"`
	Pushed  bool   `yaml:"pushed"`
}

// DescribeOutput fingerprints a written alias file.
func DescribeOutput(path string, lines int) (OutputReport, error) {
	digest, err := crypto.GetDigestOfFile(path)
	if err != nil {
		return OutputReport{}, err
	}
	return OutputReport{Path: path, Lines: lines, Digest: digest}, nil
}

// WriteFile stores the report as YAML.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report %s: %w", path, err)
	}
	return nil
}
