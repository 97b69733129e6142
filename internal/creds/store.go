// Package creds persists session credentials. The framework forwards
// credential blobs from the transport verbatim; it never interprets them.
package creds

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"whatsauto/internal/constants"
)

// Store is the credential persistence collaborator consumed by the session
// layer.
type Store interface {
	// Load returns the persisted blob for the session, or nil when none
	// exists.
	Load(sessionID string) ([]byte, error)
	Save(sessionID string, data []byte) error
	Exists(sessionID string) bool
	Purge(sessionID string) error
	// List returns the session ids with persisted credentials.
	List() ([]string, error)
}

// FileStore keeps one credential blob per session under a directory,
// optionally encrypted at rest.
type FileStore struct {
	dir       string
	encryptor *encryptor
}

// NewFileStore creates a file-backed store rooted at dir. When encrypt is
// set, blobs are sealed with AES-GCM using a key derived from the
// WHATSAUTO_ENCRYPTION_SECRET environment variable.
func NewFileStore(dir string, encrypt bool) (*FileStore, error) {
	if dir == "" {
		dir = constants.DefaultCredsDirName
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	enc, err := newEncryptor(encrypt)
	if err != nil {
		return nil, err
	}

	return &FileStore{dir: dir, encryptor: enc}, nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+constants.DefaultCredsSuffix)
}

func (s *FileStore) Load(sessionID string) ([]byte, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	plain, err := s.encryptor.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	return plain, nil
}

func (s *FileStore) Save(sessionID string, data []byte) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	sealed, err := s.encryptor.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	tmp := s.path(sessionID) + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path(sessionID)); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(sessionID string) bool {
	if validateSessionID(sessionID) != nil {
		return false
	}
	info, err := os.Stat(s.path(sessionID))
	return err == nil && !info.IsDir() && info.Size() > 0
}

func (s *FileStore) Purge(sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to purge credentials: %w", err)
	}
	return nil
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, constants.DefaultCredsSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, constants.DefaultCredsSuffix))
	}
	return ids, nil
}

// validateSessionID rejects ids that could escape the store directory.
func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	return nil
}
