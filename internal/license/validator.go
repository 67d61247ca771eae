package license

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Decision is the non-error outcome of an authorization check.
type Decision int

const (
	// DecisionChallenge asks the caller to retry with the fingerprint it carries.
	DecisionChallenge Decision = iota + 1
	// DecisionGranted authorizes release of the protected payload.
	DecisionGranted
)

func (d Decision) String() string {
	switch d {
	case DecisionChallenge:
		return "challenge"
	case DecisionGranted:
		return "granted"
	}
	return "unknown"
}

// AuthRequest is one authorize call. MachineID feeds fingerprint derivation
// when Fingerprint is empty.
type AuthRequest struct {
	KeyID       string
	Fingerprint string
	MachineID   string
}

// Result carries a Challenge or a Grant.
type Result struct {
	Decision    Decision
	KeyID       string
	Fingerprint string

	// Set on Granted only.
	OwnerID   string
	ExpiresAt time.Time
}

// Validator is the authorization read path.
type Validator struct {
	Registry    *Registry
	Now         Clock
	Fingerprint Fingerprinter
	Logger      *slog.Logger
}

func NewValidator(reg *Registry, now Clock, fp Fingerprinter, logger *slog.Logger) *Validator {
	if fp == nil {
		fp = DeriveFingerprint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		Registry:    reg,
		Now:         now,
		Fingerprint: fp,
		Logger:      logger.With("component", "license"),
	}
}

// Check runs the authorization algorithm, stopping at the first failure.
// The only write it performs is the first-use fingerprint binding.
func (v *Validator) Check(ctx context.Context, req AuthRequest) (Result, error) {
	keyID := NormalizeKey(req.KeyID)
	if keyID == "" {
		return Result{}, ErrMissingKey
	}
	key, ok := v.Registry.Get(keyID)
	if !ok {
		return Result{}, ErrInvalidKey
	}
	now := v.Now()
	if err := usable(key, now); err != nil {
		return Result{}, err
	}

	fp := strings.TrimSpace(req.Fingerprint)
	if fp == "" {
		return Result{
			Decision:    DecisionChallenge,
			KeyID:       keyID,
			Fingerprint: v.Fingerprint(req.MachineID),
		}, nil
	}
	if key.Fingerprint != "" && key.Fingerprint != fp {
		return Result{}, ErrFingerprintMismatch
	}

	if key.Fingerprint == "" {
		bound, err := v.Registry.Update(ctx, keyID, func(_ *Tx, k *LicenseKey) error {
			if err := usable(*k, now); err != nil {
				return err
			}
			if k.Fingerprint == "" {
				k.Fingerprint = fp
				return nil
			}
			if k.Fingerprint != fp {
				return ErrFingerprintMismatch
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}
		v.Logger.Info("fingerprint bound",
			slog.String("license_key", MaskKey(keyID)),
			slog.String("fingerprint", fp),
		)
		key = bound
	}

	return Result{
		Decision:    DecisionGranted,
		KeyID:       keyID,
		Fingerprint: key.Fingerprint,
		OwnerID:     key.OwnerID,
		ExpiresAt:   *key.ExpiresAt,
	}, nil
}

func usable(k LicenseKey, now time.Time) error {
	if !k.Activated || k.ExpiresAt == nil {
		return ErrNotActivated
	}
	if k.ExpiredAt(now) {
		return ErrExpired
	}
	return nil
}

// Report is the diagnostic breakdown returned by Describe.
type Report struct {
	KeyID            string `json:"key"`
	Exists           bool   `json:"exists"`
	Activated        bool   `json:"activated"`
	FingerprintMatch bool   `json:"fingerprint_match"`
	NotExpired       bool   `json:"not_expired"`
	OwnerLinked      bool   `json:"owner_linked"`
	Valid            bool   `json:"valid"`
}

// Describe evaluates each check independently without mutating state.
// An unbound key matches any presented fingerprint, since the next
// authorize call would bind it.
func (v *Validator) Describe(keyID, fingerprint string) (Report, error) {
	keyID = NormalizeKey(keyID)
	if keyID == "" {
		return Report{}, ErrMissingKey
	}
	rep := Report{KeyID: keyID}
	key, ok := v.Registry.Get(keyID)
	if !ok {
		return rep, nil
	}
	fingerprint = strings.TrimSpace(fingerprint)

	rep.Exists = true
	rep.Activated = key.Activated
	rep.FingerprintMatch = fingerprint != "" && (key.Fingerprint == "" || key.Fingerprint == fingerprint)
	rep.NotExpired = key.Activated && key.ExpiresAt != nil && !key.ExpiredAt(v.Now())
	if key.OwnerID != "" {
		held, ok := v.Registry.FindByOwner(key.OwnerID)
		rep.OwnerLinked = ok && held.ID == key.ID
	}
	rep.Valid = rep.Activated && rep.FingerprintMatch && rep.NotExpired && rep.OwnerLinked
	return rep, nil
}
