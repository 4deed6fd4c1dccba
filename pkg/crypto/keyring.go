package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dekSize = 32

// Keyring unwraps per-account data-encryption keys and hands out field
// ciphers. Unwrapped keys are cached with a bounded TTL; a refresh replaces
// the whole entry, readers never mutate one in place.
type Keyring struct {
	enc *Encryptor
	ttl time.Duration

	mu    sync.RWMutex
	cache map[uuid.UUID]dekEntry
}

type dekEntry struct {
	cipher    *AccountCipher
	expiresAt time.Time
}

func NewKeyring(enc *Encryptor, ttl time.Duration) *Keyring {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Keyring{
		enc:   enc,
		ttl:   ttl,
		cache: make(map[uuid.UUID]dekEntry),
	}
}

// GenerateDEK creates a fresh account key and returns it wrapped with the
// server identity. The plaintext key never leaves this function.
func (k *Keyring) GenerateDEK() ([]byte, error) {
	dek, err := GenerateRandomBytes(dekSize)
	if err != nil {
		return nil, err
	}
	wrapped, err := k.enc.Encrypt(dek)
	if err != nil {
		return nil, fmt.Errorf("wrapping DEK: %w", err)
	}
	return wrapped, nil
}

// Open unwraps the account's DEK and returns a field cipher for it,
// serving from the cache when the entry is still fresh.
func (k *Keyring) Open(accountID uuid.UUID, wrappedDEK []byte) (*AccountCipher, error) {
	k.mu.RLock()
	entry, ok := k.cache[accountID]
	k.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.cipher, nil
	}

	dek, err := k.enc.Decrypt(wrappedDEK)
	if err != nil {
		return nil, fmt.Errorf("unwrapping DEK: %w", err)
	}
	c, err := newAccountCipher(dek)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.cache[accountID] = dekEntry{cipher: c, expiresAt: time.Now().Add(k.ttl)}
	k.mu.Unlock()

	return c, nil
}

// Evict drops a cached key, forcing the next Open to unwrap again.
func (k *Keyring) Evict(accountID uuid.UUID) {
	k.mu.Lock()
	delete(k.cache, accountID)
	k.mu.Unlock()
}

// AccountCipher encrypts and decrypts individual fields with an account's
// DEK using AES-256-GCM.
type AccountCipher struct {
	aead cipher.AEAD
}

func newAccountCipher(dek []byte) (*AccountCipher, error) {
	if len(dek) != dekSize {
		return nil, fmt.Errorf("invalid DEK length %d", len(dek))
	}
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AccountCipher{aead: aead}, nil
}

// Encrypt seals plaintext, prefixing the random nonce to the ciphertext.
func (c *AccountCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed ciphertext.
func (c *AccountCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting field: %w", err)
	}
	return plaintext, nil
}

// EncryptString seals a string and returns base64-encoded ciphertext
func (c *AccountCipher) EncryptString(plaintext string) (string, error) {
	sealed, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString opens base64-encoded ciphertext and returns the string
func (c *AccountCipher) DecryptString(ciphertext string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}
	plaintext, err := c.Decrypt(decoded)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
