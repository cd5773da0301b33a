// Package vault encrypts bearer secrets at rest. Each secret class uses its
// own 256-bit key, so a compromise of the account-refresh key space does not
// expose stored provider credentials, and vice versa.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/tyemirov/paceline/internal/fault"
)

// Purpose selects the symmetric key for one secret class.
type Purpose string

const (
	// PurposeAccountRefresh keys account refresh tokens.
	PurposeAccountRefresh Purpose = "account-refresh"
	// PurposeProvider keys third-party provider token pairs.
	PurposeProvider Purpose = "provider"
)

const keyByteLength = 32

// Vault performs authenticated encryption keyed per purpose. It holds no
// state beyond the key material and performs no I/O.
type Vault struct {
	aeads map[Purpose]cipher.AEAD
}

// randomSource is swappable in tests.
var randomSource io.Reader = rand.Reader

// New constructs a Vault from base64-encoded 256-bit keys.
func New(keys map[Purpose]string) (*Vault, error) {
	if len(keys) == 0 {
		return nil, fault.Wrap(fault.ErrValidation, "vault.no_keys", nil)
	}
	aeads := make(map[Purpose]cipher.AEAD, len(keys))
	for purpose, encodedKey := range keys {
		keyBytes, decodeErr := base64.StdEncoding.DecodeString(encodedKey)
		if decodeErr != nil {
			return nil, fault.Wrap(fault.ErrValidation, fmt.Sprintf("vault.key_encoding.%s", purpose), decodeErr)
		}
		if len(keyBytes) != keyByteLength {
			return nil, fault.Wrap(fault.ErrValidation, fmt.Sprintf("vault.key_length.%s", purpose), nil)
		}
		block, blockErr := aes.NewCipher(keyBytes)
		if blockErr != nil {
			return nil, fault.Wrap(fault.ErrInternal, fmt.Sprintf("vault.cipher.%s", purpose), blockErr)
		}
		aead, aeadErr := cipher.NewGCM(block)
		if aeadErr != nil {
			return nil, fault.Wrap(fault.ErrInternal, fmt.Sprintf("vault.gcm.%s", purpose), aeadErr)
		}
		aeads[purpose] = aead
	}
	return &Vault{aeads: aeads}, nil
}

// Encrypt seals plaintext under the key for purpose and returns
// base64(nonce || ciphertext).
func (vault *Vault) Encrypt(plaintext string, purpose Purpose) (string, error) {
	aead, ok := vault.aeads[purpose]
	if !ok {
		return "", fault.Wrap(fault.ErrInternal, fmt.Sprintf("vault.unknown_purpose.%s", purpose), nil)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(randomSource, nonce); err != nil {
		return "", fault.Wrap(fault.ErrInternal, "vault.nonce", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same purpose.
// Tampered or foreign ciphertext fails with the token-invalid class.
func (vault *Vault) Decrypt(ciphertext string, purpose Purpose) (string, error) {
	aead, ok := vault.aeads[purpose]
	if !ok {
		return "", fault.Wrap(fault.ErrInternal, fmt.Sprintf("vault.unknown_purpose.%s", purpose), nil)
	}
	sealed, decodeErr := base64.StdEncoding.DecodeString(ciphertext)
	if decodeErr != nil {
		return "", fault.Wrap(fault.ErrTokenInvalid, "vault.decode", decodeErr)
	}
	if len(sealed) < aead.NonceSize() {
		return "", fault.Wrap(fault.ErrTokenInvalid, "vault.truncated", nil)
	}
	nonce, payload := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, openErr := aead.Open(nil, nonce, payload, nil)
	if openErr != nil {
		return "", fault.Wrap(fault.ErrTokenInvalid, "vault.open", openErr)
	}
	return string(plaintext), nil
}
