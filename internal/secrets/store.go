// Package secrets is an encrypted key/value store with rotation tracking.
// Values are sealed by the key manager before they ever touch storage; a
// failed auth tag on read is treated as tampering and raised as a security
// event, never decrypted best-effort.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"custodia/internal/audit/logger"
	auditmodels "custodia/internal/audit/models"
	"custodia/internal/classification"
	"custodia/internal/keys"
	dErrors "custodia/pkg/domain-errors"
)

const defaultRotationWait = 2 * time.Second

// Encryptor seals and opens secret values.
type Encryptor interface {
	Encrypt(plaintext []byte, tier classification.EncryptionTier) (*keys.Ciphertext, error)
	Decrypt(sealed *keys.Ciphertext) ([]byte, error)
}

// Auditor records secret lifecycle and tamper events.
type Auditor interface {
	Log(ctx context.Context, req logger.Request) (string, error)
}

type entry struct {
	mu       sync.RWMutex
	rotating chan struct{}
	secret   EncryptedSecret
}

// Store holds encrypted secrets in memory, keyed by name. Rotation takes a
// brief exclusive lock per secret; reads in flight complete against the old
// value before the swap.
type Store struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	encryptor    Encryptor
	auditor      Auditor
	logger       *slog.Logger
	clock        func() time.Time
	rotationWait time.Duration
}

type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRotationWait bounds how long a rotation waits for the per-secret lock
// before giving up with a rotation conflict.
func WithRotationWait(wait time.Duration) Option {
	return func(s *Store) {
		if wait > 0 {
			s.rotationWait = wait
		}
	}
}

func NewStore(encryptor Encryptor, auditor Auditor, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		entries:      make(map[string]*entry),
		encryptor:    encryptor,
		auditor:      auditor,
		logger:       log,
		clock:        time.Now,
		rotationWait: defaultRotationWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// tierFor picks the encryption tier by what the secret protects.
func tierFor(category Category) classification.EncryptionTier {
	if category == CategoryMedicalData {
		return classification.TierMaximum
	}
	return classification.TierHigh
}

// Put stores a new secret. Existing names are rejected; use Rotate to change
// a secret's value so the rotation timestamp stays honest.
func (s *Store) Put(ctx context.Context, name, value string, category Category, description, environment string) (*Metadata, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "secret name required")
	}
	if value == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "secret value required")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid secret category: %s", category))
	}

	sealed, err := s.encryptor.Encrypt([]byte(value), tierFor(category))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt secret")
	}

	now := s.clock().UTC()
	meta := Metadata{
		Category:             category,
		Description:          description,
		RotationIntervalDays: category.RotationIntervalDays(),
		CreatedAt:            now,
		Environment:          environment,
		GDPRRelevant:         category.GDPRRelevant(),
	}

	s.mu.Lock()
	if _, exists := s.entries[name]; exists {
		s.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("secret already exists: %s", name))
	}
	s.entries[name] = &entry{
		rotating: make(chan struct{}, 1),
		secret:   EncryptedSecret{Name: name, Sealed: sealed, Metadata: meta},
	}
	s.mu.Unlock()

	s.audit(ctx, "SECRET_CREATED", name, category, auditmodels.ResultSuccess, "")
	return &meta, nil
}

// Get decrypts and returns the secret value. A failed auth tag means the
// stored envelope was tampered with: the value is withheld and a critical
// security event is recorded.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	e, err := s.lookup(name)
	if err != nil {
		return "", err
	}

	e.mu.RLock()
	sealed := e.secret.Sealed
	category := e.secret.Metadata.Category
	plaintext, decErr := s.encryptor.Decrypt(sealed)
	e.mu.RUnlock()

	if decErr != nil {
		if dErrors.HasCode(decErr, dErrors.CodeTampered) {
			s.logger.ErrorContext(ctx, "secret failed integrity verification",
				slog.String("secret", name),
			)
			s.audit(ctx, "SECRET_TAMPER_DETECTED", name, category, auditmodels.ResultFailure, decErr.Error())
		}
		return "", dErrors.Wrap(decErr, dErrors.CodeInternal, "failed to decrypt secret")
	}
	value := string(plaintext)
	keys.Zero(plaintext)
	return value, nil
}

// Metadata returns the secret's metadata without decrypting its value.
func (s *Store) Metadata(name string) (*Metadata, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	meta := e.secret.Metadata
	return &meta, nil
}

// Rotate replaces the secret's value and stamps LastRotatedAt. Rotations on
// the same secret are exclusive; a rotation that cannot acquire the lock
// within the configured wait fails with a rotation conflict rather than
// queueing indefinitely.
func (s *Store) Rotate(ctx context.Context, name, newValue string) (*Metadata, error) {
	if newValue == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "secret value required")
	}
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	select {
	case e.rotating <- struct{}{}:
	case <-time.After(s.rotationWait):
		return nil, dErrors.New(dErrors.CodeRotationConflict, fmt.Sprintf("rotation already in progress for %s", name))
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "rotation cancelled")
	}
	defer func() { <-e.rotating }()

	e.mu.RLock()
	category := e.secret.Metadata.Category
	e.mu.RUnlock()

	sealed, err := s.encryptor.Encrypt([]byte(newValue), tierFor(category))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encrypt secret")
	}

	now := s.clock().UTC()
	e.mu.Lock()
	e.secret.Sealed = sealed
	e.secret.Metadata.LastRotatedAt = &now
	meta := e.secret.Metadata
	e.mu.Unlock()

	s.audit(ctx, "SECRET_ROTATED", name, category, auditmodels.ResultSuccess, "")
	return &meta, nil
}

// NeedsRotation reports whether the secret is overdue per its category's
// rotation interval. A never-rotated secret ages from its creation time.
func (s *Store) NeedsRotation(name string) (bool, error) {
	e, err := s.lookup(name)
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	meta := e.secret.Metadata

	since := meta.CreatedAt
	if meta.LastRotatedAt != nil {
		since = *meta.LastRotatedAt
	}
	age := s.clock().UTC().Sub(since)
	return age > time.Duration(meta.RotationIntervalDays)*24*time.Hour, nil
}

// List returns metadata for every stored secret, for rotation reporting.
func (s *Store) List() map[string]Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Metadata, len(s.entries))
	for name, e := range s.entries {
		e.mu.RLock()
		out[name] = e.secret.Metadata
		e.mu.RUnlock()
	}
	return out
}

func (s *Store) lookup(name string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("secret not found: %s", name))
	}
	return e, nil
}

func (s *Store) audit(ctx context.Context, action, name string, category Category, result auditmodels.Result, errMsg string) {
	if s.auditor == nil {
		return
	}
	eventType := auditmodels.EventAdminAction
	if result == auditmodels.ResultFailure {
		eventType = auditmodels.EventSecurityEvent
	}
	_, err := s.auditor.Log(ctx, logger.Request{
		EventType: eventType,
		Action:    action,
		Resource:  fmt.Sprintf("secret/%s", name),
		Details: map[string]any{
			"category": string(category),
		},
		Result:       result,
		ErrorMessage: errMsg,
		IPAddress:    "internal",
		UserAgent:    "secret-store",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit secret operation",
			slog.String("secret", name),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}
