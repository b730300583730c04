package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// GetDigestOfFile calculates the SHA256 digest of a file
func GetDigestOfFile(filepath string) (digest string, err error) {
	if filepath == "" {
		return "", fmt.Errorf("filepath cannot be empty")
	}

	file, err := os.Open(filepath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filepath, err)
	}
	defer file.Close()

	digest, err = GetDigestOfReader(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filepath, err)
	}
	return digest, nil
}

// GetDigestOfReader calculates the SHA256 digest from an io.Reader
func GetDigestOfReader(reader io.Reader) (digest string, err error) {
	if reader == nil {
		return "", fmt.Errorf("reader cannot be nil")
	}

	hasher := sha256.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to read from reader: %w", err)
	}

	return fmt.Sprintf("sha256:%s", hex.EncodeToString(hasher.Sum(nil))), nil
}
