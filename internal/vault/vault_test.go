package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/tyemirov/paceline/internal/fault"
)

func testKeys(t *testing.T) map[Purpose]string {
	t.Helper()
	refreshKey := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("r", 32)))
	providerKey := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("p", 32)))
	return map[Purpose]string{
		PurposeAccountRefresh: refreshKey,
		PurposeProvider:       providerKey,
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	testVault, err := New(testKeys(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ciphertext, encryptErr := testVault.Encrypt("refresh-token-plaintext", PurposeAccountRefresh)
	if encryptErr != nil {
		t.Fatalf("encrypt: %v", encryptErr)
	}
	if ciphertext == "refresh-token-plaintext" {
		t.Fatalf("ciphertext must differ from plaintext")
	}
	plaintext, decryptErr := testVault.Decrypt(ciphertext, PurposeAccountRefresh)
	if decryptErr != nil {
		t.Fatalf("decrypt: %v", decryptErr)
	}
	if plaintext != "refresh-token-plaintext" {
		t.Fatalf("expected round trip, got %q", plaintext)
	}
}

func TestDecryptWithWrongPurposeFails(t *testing.T) {
	t.Parallel()

	testVault, err := New(testKeys(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ciphertext, encryptErr := testVault.Encrypt("strava-access", PurposeProvider)
	if encryptErr != nil {
		t.Fatalf("encrypt: %v", encryptErr)
	}
	_, decryptErr := testVault.Decrypt(ciphertext, PurposeAccountRefresh)
	if !errors.Is(decryptErr, fault.ErrTokenInvalid) {
		t.Fatalf("expected token-invalid class, got %v", decryptErr)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	t.Parallel()

	testVault, err := New(testKeys(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	ciphertext, encryptErr := testVault.Encrypt("secret", PurposeProvider)
	if encryptErr != nil {
		t.Fatalf("encrypt: %v", encryptErr)
	}
	sealed, _ := base64.StdEncoding.DecodeString(ciphertext)
	sealed[len(sealed)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(sealed)

	_, decryptErr := testVault.Decrypt(tampered, PurposeProvider)
	if !errors.Is(decryptErr, fault.ErrTokenInvalid) {
		t.Fatalf("expected token-invalid class, got %v", decryptErr)
	}
}

func TestDecryptGarbageFailsCleanly(t *testing.T) {
	t.Parallel()

	testVault, err := New(testKeys(t))
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	for _, input := range []string{"", "not-base64!!!", base64.StdEncoding.EncodeToString([]byte("xx"))} {
		if _, decryptErr := testVault.Decrypt(input, PurposeProvider); !errors.Is(decryptErr, fault.ErrTokenInvalid) {
			t.Fatalf("input %q: expected token-invalid class, got %v", input, decryptErr)
		}
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected validation error for empty key set, got %v", err)
	}
	short := map[Purpose]string{PurposeProvider: base64.StdEncoding.EncodeToString([]byte("short"))}
	if _, err := New(short); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected validation error for short key, got %v", err)
	}
	notEncoded := map[Purpose]string{PurposeProvider: "%%%"}
	if _, err := New(notEncoded); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("expected validation error for non-base64 key, got %v", err)
	}
}
