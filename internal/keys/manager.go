// Package keys owns raw key material for the compliance subsystem. Nothing
// outside this package ever sees a derived key; consumers hand in plaintext
// and get sealed envelopes back.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	"golang.org/x/crypto/scrypt"

	"custodia/internal/classification"
	dErrors "custodia/pkg/domain-errors"
)

const (
	keySize         = 32
	gcmTagSize      = 16
	scryptN         = 32768
	scryptR         = 8
	scryptP         = 1
	saltPrefix      = "custodia:key:"
	masterKeyMinLen = 16
)

// Ciphertext is a sealed envelope. The three parts are produced together by
// one encryption call and must be presented together for decryption.
type Ciphertext struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	Tier       classification.EncryptionTier
}

// Manager derives one AES-256 key per encryption tier from a master secret
// and performs all encrypt/decrypt operations for the subsystem.
type Manager struct {
	mu     sync.RWMutex
	aeads  map[classification.EncryptionTier]cipher.AEAD
	keys   map[classification.EncryptionTier][]byte
	closed bool
}

// NewManager derives per-tier keys from the master secret. Each tier gets an
// independent key so a leak at one tier does not expose the others.
func NewManager(masterSecret string) (*Manager, error) {
	if len(masterSecret) < masterKeyMinLen {
		return nil, dErrors.New(dErrors.CodeValidation, "master secret too short")
	}

	m := &Manager{
		aeads: make(map[classification.EncryptionTier]cipher.AEAD),
		keys:  make(map[classification.EncryptionTier][]byte),
	}
	tiers := []classification.EncryptionTier{
		classification.TierStandard,
		classification.TierHigh,
		classification.TierMaximum,
	}
	for _, tier := range tiers {
		salt := []byte(saltPrefix + string(tier))
		key, err := scrypt.Key([]byte(masterSecret), salt, scryptN, scryptR, scryptP, keySize)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "key derivation failed")
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			Zero(key)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cipher initialization failed")
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			Zero(key)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "cipher initialization failed")
		}
		m.aeads[tier] = aead
		m.keys[tier] = key
	}
	return m, nil
}

// Encrypt seals plaintext under the key for the given tier. A fresh random
// nonce is generated per call; the GCM tag is split out so stores can persist
// the three parts separately.
func (m *Manager) Encrypt(plaintext []byte, tier classification.EncryptionTier) (*Ciphertext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, dErrors.New(dErrors.CodeInternal, "key manager closed")
	}
	aead, ok := m.aeads[tier]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown encryption tier: %s", tier))
	}

	iv := make([]byte, aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate nonce")
	}
	sealed := aead.Seal(nil, iv, plaintext, nil)

	tagStart := len(sealed) - gcmTagSize
	return &Ciphertext{
		Ciphertext: sealed[:tagStart],
		IV:         iv,
		AuthTag:    sealed[tagStart:],
		Tier:       tier,
	}, nil
}

// Decrypt opens a sealed envelope. An envelope whose auth tag fails
// verification is tampered and is rejected outright.
func (m *Manager) Decrypt(sealed *Ciphertext) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, dErrors.New(dErrors.CodeInternal, "key manager closed")
	}
	if sealed == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "ciphertext required")
	}
	aead, ok := m.aeads[sealed.Tier]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown encryption tier: %s", sealed.Tier))
	}

	combined := make([]byte, 0, len(sealed.Ciphertext)+len(sealed.AuthTag))
	combined = append(combined, sealed.Ciphertext...)
	combined = append(combined, sealed.AuthTag...)

	plaintext, err := aead.Open(nil, sealed.IV, combined, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTampered, "authentication failed")
	}
	return plaintext, nil
}

// Close zeroes all derived key material. The manager is unusable afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for tier, key := range m.keys {
		Zero(key)
		delete(m.keys, tier)
		delete(m.aeads, tier)
	}
	m.closed = true
}

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
