package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
)

const keyLength = 32 // AES-256

// Argon2id parameters for passphrase-derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// seal encrypts plaintext with AES-256-GCM, binding it to aad. The result
// is nonce||ciphertext.
func seal(key, plaintext, aad []byte) ([]byte, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blk)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return append(nonce, gcm.Seal(nil, nonce, plaintext, aad)...), nil
}

// open reverses seal with the same key and aad.
func open(key, sealed, aad []byte) ([]byte, error) {
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blk)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed value too short")
	}
	return gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], aad)
}

// loadOrCreateKey resolves the store's sealing key. Passphrase mode derives
// it with Argon2id from a per-store random salt; key-file mode generates a
// random key once and reuses it across runs.
func loadOrCreateKey(dir, passphrase string) ([]byte, error) {
	if passphrase != "" {
		salt, err := loadOrCreateRandom(filepath.Join(dir, ".salt"), 16)
		if err != nil {
			return nil, err
		}
		return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLength), nil
	}
	return loadOrCreateRandom(filepath.Join(dir, ".key"), keyLength)
}

func loadOrCreateRandom(path string, n int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		b, derr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if derr != nil || len(b) != n {
			return nil, fmt.Errorf("corrupt key material at %s", path)
		}
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(b)), 0o600); err != nil {
		return nil, err
	}
	return b, nil
}
