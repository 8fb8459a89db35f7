package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// LocalStore keeps blobs on a filesystem rooted at a single directory. The
// filesystem is an afero.Fs so tests run against an in-memory one.
type LocalStore struct {
	fs     afero.Fs
	root   string
	logger hclog.Logger
}

// NewLocalStore creates a filesystem-backed store rooted at root.
func NewLocalStore(fs afero.Fs, root string, logger hclog.Logger) (*LocalStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{
		fs:     fs,
		root:   root,
		logger: logger.Named("local-store"),
	}, nil
}

// Put writes data under key, creating parent directories as needed.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	s.logger.Debug("blob written", "key", key, "bytes", len(data))
	return "local:" + key, nil
}

// Get resolves a local ref.
func (s *LocalStore) Get(ctx context.Context, ref string) ([]byte, error) {
	scheme, key, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	if scheme != "local" {
		return nil, fmt.Errorf("ref %q is not a local ref", ref)
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the blob behind ref.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	scheme, key, err := splitRef(ref)
	if err != nil {
		return err
	}
	if scheme != "local" {
		return fmt.Errorf("ref %q is not a local ref", ref)
	}
	err = s.fs.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}
