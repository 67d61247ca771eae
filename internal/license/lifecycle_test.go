package license

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		days    int
		wantErr error
	}{
		{"zero count", 0, 30, ErrInvalidCount},
		{"negative count", -1, 30, ErrInvalidCount},
		{"over max", 51, 30, ErrInvalidCount},
		{"zero duration", 1, 0, ErrInvalidDuration},
		{"negative duration", 1, -7, ErrInvalidDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			ids, err := f.lifecycle.Generate(context.Background(), tt.count, tt.days)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, ids)
			assert.Equal(t, 0, f.registry.Stats().Total)
		})
	}
}

func TestGenerateReturnsDistinctIDs(t *testing.T) {
	f := newFixture(nil)
	f.lifecycle.NewID = RandomIDs("SIEO")

	first, err := f.lifecycle.Generate(context.Background(), 10, 30)
	require.NoError(t, err)
	require.Len(t, first, 10)

	second, err := f.lifecycle.Generate(context.Background(), 50, 30)
	require.NoError(t, err)

	seen := make(map[string]bool)
	pattern := regexp.MustCompile(`^SIEO-\d{4}-\d{4}-\d{4}$`)
	for _, id := range append(first, second...) {
		assert.Regexp(t, pattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		k, ok := f.registry.Get(id)
		require.True(t, ok)
		assert.False(t, k.Activated)
		assert.Empty(t, k.OwnerID)
		assert.Nil(t, k.ExpiresAt)
		assert.Equal(t, 30, k.DurationDays)
		assert.True(t, k.CreatedAt.Equal(f.clock.Now()))
	}
	assert.Equal(t, 60, f.registry.Stats().Total)
}

func TestGenerateRetriesCollisions(t *testing.T) {
	f := newFixture(nil)
	f.lifecycle.NewID = sequentialIDs("DUP-1", "DUP-1", "DUP-1", "FRESH-2")

	ids, err := f.lifecycle.Generate(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"DUP-1", "FRESH-2"}, ids)
}

func TestGenerateGivesUpOnPersistentCollision(t *testing.T) {
	f := newFixture(nil)
	f.lifecycle.NewID = func() string { return "SAME" }

	ids, err := f.lifecycle.Generate(context.Background(), 2, 5)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, []string{"SAME"}, ids)
}

func TestActivateSetsExpiryFromRedemption(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	ids, err := f.lifecycle.Generate(ctx, 1, 7)
	require.NoError(t, err)

	f.clock.Advance(72 * time.Hour)
	activatedAt := f.clock.Now()

	key, err := f.lifecycle.Activate(ctx, ids[0], "U1")
	require.NoError(t, err)
	assert.True(t, key.Activated)
	assert.Equal(t, "U1", key.OwnerID)
	require.NotNil(t, key.ActivatedAt)
	require.NotNil(t, key.ExpiresAt)
	assert.True(t, key.ActivatedAt.Equal(activatedAt))
	assert.True(t, key.ExpiresAt.Equal(activatedAt.Add(7*24*time.Hour)))
	assert.False(t, key.ExpiresAt.Equal(key.CreatedAt.Add(7*24*time.Hour)))

	held, ok := f.registry.FindByOwner("U1")
	require.True(t, ok)
	assert.Equal(t, ids[0], held.ID)
}

func TestActivateErrors(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.lifecycle.NewID = sequentialIDs("K1", "K2")
	_, err := f.lifecycle.Generate(ctx, 2, 30)
	require.NoError(t, err)

	_, err = f.lifecycle.Activate(ctx, "missing", "U1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.lifecycle.Activate(ctx, "", "U1")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = f.lifecycle.Activate(ctx, "K1", " ")
	assert.ErrorIs(t, err, ErrMissingOwner)

	_, err = f.lifecycle.Activate(ctx, "K1", "U1")
	require.NoError(t, err)

	for _, caller := range []string{"U1", "U2"} {
		_, err = f.lifecycle.Activate(ctx, "K1", caller)
		assert.ErrorIs(t, err, ErrAlreadyActivated, "caller %s", caller)
	}

	_, err = f.lifecycle.Activate(ctx, "K2", "U1")
	assert.ErrorIs(t, err, ErrOwnerAlreadyBound)

	k2, _ := f.registry.Get("K2")
	assert.False(t, k2.Activated)
}

func TestActivateAllowedAfterPreviousKeyExpired(t *testing.T) {
	f := newFixture(nil)
	ctx := context.Background()
	f.lifecycle.NewID = sequentialIDs("K1", "K2")
	_, err := f.lifecycle.Generate(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.lifecycle.Generate(ctx, 1, 30)
	require.NoError(t, err)

	_, err = f.lifecycle.Activate(ctx, "K1", "U1")
	require.NoError(t, err)

	f.clock.Advance(49 * time.Hour)
	_, err = f.lifecycle.Activate(ctx, "K2", "U1")
	require.NoError(t, err)

	held, ok := f.registry.FindByOwner("U1")
	require.True(t, ok)
	assert.Equal(t, "K2", held.ID)
}

func TestConcurrentActivationSingleWinner(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(nil)
		ctx := context.Background()
		ids, err := f.lifecycle.Generate(ctx, 1, 30)
		require.NoError(t, err)

		owners := []string{"U1", "U2"}
		errs := make([]error, len(owners))
		var wg sync.WaitGroup
		for i, owner := range owners {
			wg.Add(1)
			go func(i int, owner string) {
				defer wg.Done()
				_, errs[i] = f.lifecycle.Activate(ctx, ids[0], owner)
			}(i, owner)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyActivated)
		}
		assert.Equal(t, 1, wins)
	}
}

func TestActivatePersists(t *testing.T) {
	store := newMemStore()
	f := newFixture(store)
	ctx := context.Background()
	ids, err := f.lifecycle.Generate(ctx, 1, 30)
	require.NoError(t, err)

	_, err = f.lifecycle.Activate(ctx, ids[0], "U1")
	require.NoError(t, err)

	saved := store.keys[ids[0]]
	assert.True(t, saved.Activated)
	assert.Equal(t, "U1", saved.OwnerID)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "SIEO****5678", MaskKey("SIEO-1234-5678"))
}

func TestGenerateConfigCannotRaiseCap(t *testing.T) {
	f := newFixture(nil)
	f.lifecycle.MaxGenerate = 100

	ids, err := f.lifecycle.Generate(context.Background(), 51, 30)
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Empty(t, ids)

	f.lifecycle.MaxGenerate = 5
	_, err = f.lifecycle.Generate(context.Background(), 6, 30)
	assert.ErrorIs(t, err, ErrInvalidCount)

	ids, err = f.lifecycle.Generate(context.Background(), 5, 30)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestRandomIDsUpperCasePrefix(t *testing.T) {
	id := RandomIDs("sieo")()
	assert.Regexp(t, regexp.MustCompile(`^SIEO-\d{4}-\d{4}-\d{4}$`), id)
	assert.Equal(t, id, NormalizeKey(" "+id+" "))
}
