// Package keystore is the device-local key-value store used for the
// identity snapshot, the cached custom token and the installation id.
// Values are JSON-serialized, sealed with AES-256-GCM and written one file
// per key so they survive process restart.
package keystore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	dir string
	key []byte
}

// Open prepares the store under dir. When passphrase is empty the sealing
// key is a random key file next to the data; otherwise it is derived from
// the passphrase with Argon2id and a stored salt.
func Open(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore dir: %w", err)
	}
	key, err := loadOrCreateKey(dir, passphrase)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, key: key}, nil
}

// Set serializes value as JSON, seals it and writes it durably.
func (s *Store) Set(key string, value any) error {
	plain, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("keystore set %s: %w", key, err)
	}
	sealed, err := seal(s.key, plain, []byte(key))
	if err != nil {
		return fmt.Errorf("keystore set %s: %w", key, err)
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(base64.StdEncoding.EncodeToString(sealed)), 0o600); err != nil {
		return fmt.Errorf("keystore set %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("keystore set %s: %w", key, err)
	}
	return nil
}

// Get unseals key into out. The boolean reports whether the key existed.
func (s *Store) Get(key string, out any) (bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("keystore get %s: %w", key, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return false, fmt.Errorf("keystore get %s: %w", key, err)
	}
	plain, err := open(s.key, sealed, []byte(key))
	if err != nil {
		return false, fmt.Errorf("keystore get %s: %w", key, err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return false, fmt.Errorf("keystore get %s: %w", key, err)
	}
	return true, nil
}

// Remove deletes the key; removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) path(key string) string {
	// keys are internal identifiers, but keep the filename shell-safe
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.dir, name+".sealed")
}
