package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/xxxsen/docast/internal/pkg/errors"
)

type localConfig struct {
	Dir       string `json:"dir"`
	PublicURL string `json:"public_url"`
}

type localStore struct {
	dir       string
	publicURL string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir, publicURL: config.PublicURL}, nil
}

func (s *localStore) Type() string {
	return "local"
}

func (s *localStore) URL(ref, baseURL string) string {
	if s.publicURL != "" {
		return strings.TrimSuffix(s.publicURL, "/") + "/" + ref
	}
	return strings.TrimSuffix(baseURL, "/") + "/api/v1/files/" + ref
}

func (s *localStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	_ = ctx
	_ = contentType
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	ref := Ref(data)
	path := filepath.Join(s.dir, ref)
	if _, err := os.Stat(path); err == nil {
		// Same bytes, same ref: already stored.
		return ref, nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *localStore) Get(ctx context.Context, ref string) ([]byte, error) {
	_ = ctx
	if !validRef(ref) {
		return nil, fmt.Errorf("invalid object ref: %w", apperrors.ErrInvalid)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("object %s: %w", ref, apperrors.ErrNotFound)
	}
	return data, err
}

func (s *localStore) Delete(ctx context.Context, ref string) error {
	_ = ctx
	if !validRef(ref) {
		return fmt.Errorf("invalid object ref: %w", apperrors.ErrInvalid)
	}
	err := os.Remove(filepath.Join(s.dir, ref))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
