package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

// ErrDecrypt is the only error Open returns for a failed decryption. Tag
// mismatches, truncated input, and wrong keys are deliberately
// indistinguishable to the caller.
var ErrDecrypt = errors.New("cryptox: decryption failed")

// Secretbox provides AES-256-GCM authenticated encryption for small secrets
// at rest (TOTP seeds). The key is injected at construction; there is no
// package-level key state.
type Secretbox struct {
	aead cipher.AEAD
}

// NewSecretbox derives a 32-byte AES-256 key from the provided key material
// via SHA-256 and returns a ready-to-use box. Key material must be non-empty.
func NewSecretbox(keyMaterial []byte) (*Secretbox, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty secretbox key material")
	}

	key := sha256.Sum256(keyMaterial)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Secretbox{aead: aead}, nil
}

// Seal encrypts plaintext and returns the ciphertext (which includes the GCM
// auth tag) and the nonce separately, matching the encrypted_secret/iv column
// split in the store. A fresh nonce is drawn from crypto/rand on every call;
// it is never derived from the plaintext or any caller-supplied value.
func (s *Secretbox) Seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}

	ciphertext = s.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Open decrypts and authenticates a Seal output. Any tampering with the
// ciphertext or nonce fails closed with ErrDecrypt; no partial plaintext is
// ever returned.
func (s *Secretbox) Open(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, ErrDecrypt
	}

	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
