package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultDiskRoot = "./data/attachments"

// DiskStore keeps attachment bytes as plain files under a single root
// directory. Writes go through a temp file and rename so readers never see a
// partial object.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = defaultDiskRoot
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating attachment root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(_ context.Context, key, _ string, body []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o640); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	return data, err
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// pathFor maps a key onto a path inside the root. Traversal segments are
// stripped up front so every resulting path stays under the root.
func (s *DiskStore) pathFor(key string) (string, error) {
	key = strings.TrimPrefix(filepath.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return filepath.Join(s.root, key), nil
}
