package util

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// HashBytes returns the hex SHA1 of b
func HashBytes(b []byte) string {
	h := sha1.New()
	h.Write(b)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// GenerateContentHash creates a SHA1 hash of file content
func GenerateContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ShortSHA256 returns the first n hex characters of sha256(s)
func ShortSHA256(s string, n int) string {
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
	if n > len(sum) {
		n = len(sum)
	}
	return sum[:n]
}
