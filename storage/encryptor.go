package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// NonceSize is the nonce size for AES-GCM
	NonceSize = 12
	// SaltSize is the salt size for key derivation
	SaltSize = 16
	// KeySize is the AES-256 key size
	KeySize = 32
	// PBKDF2Iterations is the iteration count for master key derivation
	PBKDF2Iterations = 210000

	blobVersion = 0x01
)

var (
	ErrInvalidKeySize    = errors.New("encryption key must be 32 bytes for AES-256")
	ErrCiphertextTooShort = errors.New("ciphertext shorter than header")
	ErrUnknownBlobVersion = errors.New("unknown sealed blob version")
)

// Encryptor seals and opens data blobs with AES-256-GCM. A master key is
// derived once per installation; every write gets a fresh salt that expands
// the master key into a distinct write key, and a fresh GCM nonce.
//
// Blob layout: [1 version][16 salt][12 nonce][ciphertext].
type Encryptor struct {
	masterKey []byte
}

// DeriveMasterKey derives the 32-byte master key from a password and the
// per-installation salt via PBKDF2-SHA256.
func DeriveMasterKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// NewEncryptor creates an encryptor from a raw 32-byte master key.
func NewEncryptor(masterKey []byte) (*Encryptor, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKeySize
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &Encryptor{masterKey: key}, nil
}

// writeKey expands the master key into a per-write key bound to salt.
func (e *Encryptor) writeKey(salt []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, e.masterKey, salt, []byte("fitvault.blob.v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func gcmFor(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext into a self-describing blob.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	key, err := e.writeKey(salt)
	if err != nil {
		return nil, err
	}
	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+SaltSize+NonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, blobVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Authentication failure, truncation
// or an unknown version all return an error; callers map that to "absent".
func (e *Encryptor) Open(blob []byte) ([]byte, error) {
	if len(blob) < 1+SaltSize+NonceSize+1 {
		return nil, ErrCiphertextTooShort
	}
	if blob[0] != blobVersion {
		return nil, ErrUnknownBlobVersion
	}
	salt := blob[1 : 1+SaltSize]
	nonce := blob[1+SaltSize : 1+SaltSize+NonceSize]
	ciphertext := blob[1+SaltSize+NonceSize:]

	key, err := e.writeKey(salt)
	if err != nil {
		return nil, err
	}
	gcm, err := gcmFor(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// NewSalt generates a fresh per-installation KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// NewRandomSecret generates a random secret for installations without a
// user-supplied password. The secret is persisted by the store; on devices
// with a platform keystore it belongs there instead.
func NewRandomSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range raw {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out), nil
}
