package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const helloDigest = "sha256:dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"

func TestGetDigestOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alias.txt")
	if err := os.WriteFile(path, []byte("Hello, World!"), 0644); err != nil {
		t.Fatal(err)
	}

	digest, err := GetDigestOfFile(path)
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if digest != helloDigest {
		t.Errorf("Expected digest %s, got %s", helloDigest, digest)
	}

	if _, err := GetDigestOfFile(""); err == nil {
		t.Error("Expected error for empty filepath")
	}
	if _, err := GetDigestOfFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestGetDigestOfReader(t *testing.T) {
	digest, err := GetDigestOfReader(strings.NewReader("Hello, World!"))
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if digest != helloDigest {
		t.Errorf("Expected digest %s, got %s", helloDigest, digest)
	}

	if _, err := GetDigestOfReader(nil); err == nil {
		t.Error("Expected error for nil reader")
	}
}
