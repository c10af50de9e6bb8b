// Package credstore persists protocol authentication material on disk, one
// directory per session under a configured root. Loads tolerate missing
// material; saves are atomic so a concurrent load never observes a partial
// write.
package credstore

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/apperrors"
)

// ErrCredentialIO is returned for persistence failures during load, save, or
// delete of on-disk material.
var ErrCredentialIO apperrors.Error = apperrors.New("credential storage error").SetStatusCode(http.StatusInternalServerError)

// materialFile is the file inside a session directory holding the
// serialized authentication material.
const materialFile = "creds.json"

// Store manages per-session credential directories under one root.
type Store struct {
	root string
}

// New creates a store rooted at the given directory, creating it if needed.
func New(root string) (*Store, apperrors.Error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, ErrCredentialIO.Msg("unable to create credential root: " + err.Error())
	}
	return &Store{root: root}, nil
}

// Dir returns the on-disk directory for a session. The session ID is
// sanitized to a single path element so callers cannot escape the root.
func (s *Store) Dir(sessionID string) string {
	return filepath.Join(s.root, filepath.Base(sessionID))
}

// Open returns the credential handle for a session, creating its directory
// if it does not exist yet.
func (s *Store) Open(sessionID string) (*Handle, apperrors.Error) {
	dir := s.Dir(sessionID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, ErrCredentialIO.Msg(fmt.Sprintf("unable to create session directory %s: %v", dir, err))
	}
	return &Handle{dir: dir}, nil
}

// Exists reports whether persisted material is present for a session.
func (s *Store) Exists(sessionID string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(sessionID), materialFile))
	return err == nil
}

// Delete removes the session's credential directory tree. Deleting a session
// that has no directory is not an error.
func (s *Store) Delete(sessionID string) apperrors.Error {
	if err := os.RemoveAll(s.Dir(sessionID)); err != nil {
		return ErrCredentialIO.Msg("unable to delete session credentials: " + err.Error())
	}
	return nil
}

// Handle gives one session's adapter access to its credential material.
// It implements the protocol.CredentialSource contract.
type Handle struct {
	dir string
}

// Dir returns the directory exclusively owned by this session.
func (h *Handle) Dir() string {
	return h.dir
}

// Load returns the persisted material, or nil if none has been saved yet.
// A missing file is "no prior credentials", not an error.
func (h *Handle) Load() ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(h.dir, materialFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrCredentialIO.Msg("unable to load credentials: " + err.Error())
	}
	return data, nil
}

// Save durably persists a snapshot of the material. The write goes to a
// temporary file first and is renamed into place, so a concurrent Load sees
// either the old or the new material, never a partial write.
func (h *Handle) Save(material []byte) error {
	tmp, err := os.CreateTemp(h.dir, materialFile+".tmp-*")
	if err != nil {
		return ErrCredentialIO.Msg("unable to stage credentials: " + err.Error())
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(material); err != nil {
		tmp.Close()
		return ErrCredentialIO.Msg("unable to write credentials: " + err.Error())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ErrCredentialIO.Msg("unable to sync credentials: " + err.Error())
	}
	if err := tmp.Close(); err != nil {
		return ErrCredentialIO.Msg("unable to close credentials: " + err.Error())
	}
	if err := os.Rename(tmpName, filepath.Join(h.dir, materialFile)); err != nil {
		return ErrCredentialIO.Msg("unable to commit credentials: " + err.Error())
	}
	return nil
}
