package alias

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/netalias/genalias/pkg/dump"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// FileOutput writes to a temporary file next to the destination and
// renames it into place on Commit, so readers never see a partial list.
type FileOutput struct {
	path string
	tmp  *os.File
	w    io.Writer
}

// CreateOutput prepares path for writing. "-" and "" write to stdout
// directly; Commit and Discard are then no-ops.
func CreateOutput(path string, stdout io.Writer) (*FileOutput, error) {
	if path == "" || path == Stdout {
		return &FileOutput{w: stdout}, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary output for %s: %w", path, err)
	}
	return &FileOutput{path: path, tmp: tmp, w: tmp}, nil
}

func (o *FileOutput) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

// Path is the destination, empty for stdout.
func (o *FileOutput) Path() string {
	return o.path
}

// Commit moves the finished file into place.
func (o *FileOutput) Commit() error {
	if o.tmp == nil {
		return nil
	}
	name := o.tmp.Name()
	if err := o.tmp.Chmod(0644); err != nil {
		o.Discard()
		return fmt.Errorf("failed to set mode on %s: %w", name, err)
	}
	if err := o.tmp.Close(); err != nil {
		os.Remove(name)
		o.tmp = nil
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	o.tmp = nil
	if err := os.Rename(name, o.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to move output into %s: %w", o.path, err)
	}
	return nil
}

// Discard drops the temporary file. It is a no-op after Commit.
func (o *FileOutput) Discard() {
	if o.tmp == nil {
		return
	}
	name := o.tmp.Name()
	o.tmp.Close()
	os.Remove(name)
	o.tmp = nil
}

// GenerateFiles runs g over r and writes the lists to v4Path and v6Path,
// either of which may be "-" for stdout. An empty v6Path appends IPv6
// prefixes to the IPv4 output. File outputs are only replaced when the
// run succeeds.
func GenerateFiles(ctx context.Context, g *Generator, r *dump.Reader, stdout io.Writer, v4Path, v6Path string) (*Result, error) {
	v4, err := CreateOutput(v4Path, stdout)
	if err != nil {
		return nil, err
	}
	defer v4.Discard()

	var v6 *FileOutput
	var v6w io.Writer
	if v6Path != "" {
		if v6, err = CreateOutput(v6Path, stdout); err != nil {
			return nil, err
		}
		defer v6.Discard()
		v6w = v6
	}

	result, err := g.Run(ctx, r, v4, v6w)
	if err != nil {
		return nil, err
	}
	if err := v4.Commit(); err != nil {
		return nil, err
	}
	if v6 != nil {
		if err := v6.Commit(); err != nil {
			return nil, err
		}
	}
	return result, nil
}
