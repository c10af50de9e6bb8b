// Package apikey maps bearer tokens to session identities, backed by one
// flat JSON file. Keys are issued on session creation and revoked on logout;
// the statically configured admin key always resolves to the reserved
// "default" session identity and is never stored or revoked.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vergatan10/api-whatsapp-gateway/internal/common/apperrors"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
)

// ErrKeyStore is returned when the key file cannot be persisted.
var ErrKeyStore apperrors.Error = apperrors.New("unable to persist api keys").SetStatusCode(http.StatusInternalServerError)

// Record holds the metadata stored for one issued key.
type Record struct {
	SessionID   string    `json:"sessionId"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the issued-key registry. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	path     string
	adminKey string
	keys     map[string]Record
}

// NewStore loads the key file at path, or starts empty if the file is
// missing or unreadable. A corrupt file is logged and treated as empty; the
// admin key keeps working regardless.
func NewStore(path, adminKey string) *Store {
	s := &Store{
		path:     path,
		adminKey: adminKey,
		keys:     make(map[string]Record),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("unable to read api key file, starting empty")
		}
		return s
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("api key file is corrupt, starting empty")
		s.keys = make(map[string]Record)
	}
	return s
}

// Issue generates a new key bound to the session and persists the mapping.
func (s *Store) Issue(sessionID, description string) (string, apperrors.Error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrKeyStore.Msg("unable to generate key: " + err.Error())
	}
	key := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = Record{
		SessionID:   sessionID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.persistLocked(); err != nil {
		delete(s.keys, key)
		return "", err
	}
	return key, nil
}

// Resolve returns the session identity a key is bound to. The admin key
// always resolves to the reserved default identity, regardless of the
// issued-key file contents.
func (s *Store) Resolve(key string) (string, bool) {
	if key == s.adminKey {
		return config.DefaultSessionIdentity, true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return "", false
	}
	return rec.SessionID, true
}

// IsAdmin reports whether the key is the configured admin key.
func (s *Store) IsAdmin(key string) bool {
	return key == s.adminKey
}

// Revoke deletes an issued key and persists the change. The admin key is
// never revoked. Returns false if the key was not issued.
func (s *Store) Revoke(key string) bool {
	if key == s.adminKey {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	if !ok {
		return false
	}
	delete(s.keys, key)
	if err := s.persistLocked(); err != nil {
		s.keys[key] = rec
		log.Error().Err(err).Msg("unable to persist key revocation")
		return false
	}
	return true
}

// List returns a copy of all issued key records, keyed by token.
func (s *Store) List() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Record, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}

// persistLocked writes the key map atomically. Callers must hold s.mu.
func (s *Store) persistLocked() apperrors.Error {
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return ErrKeyStore.Msg(err.Error())
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return ErrKeyStore.Msg(err.Error())
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ErrKeyStore.Msg(err.Error())
	}
	if err := tmp.Close(); err != nil {
		return ErrKeyStore.Msg(err.Error())
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return ErrKeyStore.Msg(err.Error())
	}
	return nil
}
