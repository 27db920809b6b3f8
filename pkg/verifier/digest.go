package verifier

import (
	_ "crypto/sha256" // registers sha256 for go-digest
	"os"

	"github.com/opencontainers/go-digest"

	"github.com/ksysoev/todo-issue-reopener/pkg/core"
)

// ValidateFileDigest validates the sha256 hex digest of the file at path
// against expected.
func ValidateFileDigest(path, expected string) error {
	got, err := fileDigest(path)
	if err != nil {
		return err
	}

	if got.Encoded() != expected {
		return &core.DigestError{Path: path, Want: expected, Got: got.Encoded()}
	}

	return nil
}

func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &core.FileError{Path: path, Err: err}
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", &core.FileError{Path: path, Err: err}
	}

	return d, nil
}
