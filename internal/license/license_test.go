package license

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequentialIDs yields ids from a fixed list, then numbered ones.
func sequentialIDs(fixed ...string) IDGenerator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n <= len(fixed) {
			return fixed[n-1]
		}
		return fmt.Sprintf("TEST-%04d-0000-0000", n)
	}
}

type fixture struct {
	clock     *testClock
	registry  *Registry
	lifecycle *Lifecycle
	validator *Validator
}

func newFixture(store Store) *fixture {
	clock := newTestClock()
	reg := NewRegistry(store)
	lc := NewLifecycle(reg, clock.Now, discardLogger())
	v := NewValidator(reg, clock.Now, DeriveFingerprint, discardLogger())
	return &fixture{clock: clock, registry: reg, lifecycle: lc, validator: v}
}

// memStore records writes and can be told to fail.
type memStore struct {
	mu      sync.Mutex
	keys    map[string]LicenseKey
	saves   int
	failErr error
}

func newMemStore() *memStore {
	return &memStore{keys: make(map[string]LicenseKey)}
}

func (s *memStore) LoadKeys(context.Context) ([]LicenseKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LicenseKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k.clone())
	}
	return out, nil
}

func (s *memStore) CreateKey(_ context.Context, k LicenseKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.keys[k.ID]; ok {
		return errors.New("unique violation")
	}
	s.keys[k.ID] = k.clone()
	return nil
}

func (s *memStore) SaveKey(_ context.Context, k LicenseKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saves++
	s.keys[k.ID] = k.clone()
	return nil
}

func (s *memStore) DeleteKeys(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for _, id := range ids {
		delete(s.keys, id)
	}
	return nil
}
