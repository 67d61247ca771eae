// Package payload fetches the protected content released after a grant.
package payload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store returns the payload blob for id. Contents are opaque to callers.
type Store interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

// ErrInvalidID is returned for ids that would escape the store root.
var ErrInvalidID = errors.New("payload: invalid id")

// DirStore serves payloads from files under Root.
type DirStore struct {
	Root string
}

func (s DirStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	b, err := os.ReadFile(filepath.Join(s.Root, id))
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", id, err)
	}
	return b, nil
}

// StaticStore serves fixed in-memory payloads.
type StaticStore map[string][]byte

func (s StaticStore) Fetch(_ context.Context, id string) ([]byte, error) {
	b, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("payload %s: %w", id, os.ErrNotExist)
	}
	return b, nil
}
