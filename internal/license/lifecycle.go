package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
)

const (
	// DefaultMaxGenerate caps a single generate call.
	DefaultMaxGenerate = 50
	DefaultKeyPrefix   = "SIEO"

	maxGenerateAttempts = 10
)

// IDGenerator returns a candidate key id.
type IDGenerator func() string

// RandomIDs returns a generator of PREFIX-dddd-dddd-dddd ids. The prefix is
// upper-cased so every id is already in normalized form.
func RandomIDs(prefix string) IDGenerator {
	prefix = NormalizeKey(prefix)
	return func() string {
		return fmt.Sprintf("%s-%d-%d-%d", prefix, group(), group(), group())
	}
}

// NormalizeKey trims and upper-cases a presented key. Every lookup by
// key id goes through it.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func group() int {
	return 1000 + rand.Intn(9000)
}

// Lifecycle issues and activates keys.
type Lifecycle struct {
	Registry    *Registry
	Now         Clock
	NewID       IDGenerator
	MaxGenerate int
	Logger      *slog.Logger
}

// NewLifecycle wires a lifecycle with the default id format and limits.
func NewLifecycle(reg *Registry, now Clock, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		Registry:    reg,
		Now:         now,
		NewID:       RandomIDs(DefaultKeyPrefix),
		MaxGenerate: DefaultMaxGenerate,
		Logger:      logger.With("component", "license"),
	}
}

// Generate creates count unbound keys valid for durationDays from redemption
// and returns their ids in creation order.
func (l *Lifecycle) Generate(ctx context.Context, count, durationDays int) ([]string, error) {
	// Configuration may only lower the cap.
	limit := DefaultMaxGenerate
	if l.MaxGenerate > 0 && l.MaxGenerate < limit {
		limit = l.MaxGenerate
	}
	if count <= 0 || count > limit {
		return nil, fmt.Errorf("generate %d keys (max %d): %w", count, limit, ErrInvalidCount)
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("generate with %d days: %w", durationDays, ErrInvalidDuration)
	}

	ids := make([]string, 0, count)
	for len(ids) < count {
		id, err := l.insertFresh(ctx, durationDays)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	l.Logger.Info("keys generated", slog.Int("count", count), slog.Int("duration_days", durationDays))
	return ids, nil
}

func (l *Lifecycle) insertFresh(ctx context.Context, durationDays int) (string, error) {
	var err error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		key := LicenseKey{
			ID:           l.NewID(),
			DurationDays: durationDays,
			CreatedAt:    l.Now(),
		}
		err = l.Registry.Insert(ctx, key)
		if err == nil {
			return key.ID, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			return "", err
		}
	}
	return "", err
}

// Activate binds keyID to ownerID and starts its validity window.
func (l *Lifecycle) Activate(ctx context.Context, keyID, ownerID string) (LicenseKey, error) {
	keyID = NormalizeKey(keyID)
	ownerID = strings.TrimSpace(ownerID)
	if keyID == "" {
		return LicenseKey{}, ErrMissingKey
	}
	if ownerID == "" {
		return LicenseKey{}, ErrMissingOwner
	}

	now := l.Now()
	key, err := l.Registry.Update(ctx, keyID, func(tx *Tx, k *LicenseKey) error {
		if k.Activated {
			return ErrAlreadyActivated
		}
		if held, ok := tx.FindByOwner(ownerID); ok && held.ID != k.ID && !held.ExpiredAt(now) {
			return ErrOwnerAlreadyBound
		}
		expires := now.Add(days(k.DurationDays))
		activatedAt := now
		k.Activated = true
		k.OwnerID = ownerID
		k.ActivatedAt = &activatedAt
		k.ExpiresAt = &expires
		return nil
	})
	if err != nil {
		l.Logger.Warn("activation refused",
			slog.String("license_key", MaskKey(keyID)),
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return LicenseKey{}, err
	}
	l.Logger.Info("key activated",
		slog.String("license_key", MaskKey(keyID)),
		slog.String("owner", ownerID),
		slog.Time("expires_at", *key.ExpiresAt),
	)
	return key, nil
}

// MaskKey hides the middle of a key for logs.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
