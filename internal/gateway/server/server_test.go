package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/apikey"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/config"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/credstore"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/eventbus"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/pairing"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/protocol/protocoltest"
	"github.com/vergatan10/api-whatsapp-gateway/internal/gateway/session"
)

type testEnv struct {
	server *Server
	dialer *protocoltest.Dialer
	keys   *apikey.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	config.TestInit(t)

	creds, aerr := credstore.New(config.Config().SessionPath)
	require.Nil(t, aerr)

	dialer := protocoltest.NewDialer()
	manager := session.NewManager(session.Options{
		Dialer:            dialer,
		Credentials:       creds,
		Artifacts:         pairing.NewCache(),
		Bus:               eventbus.New(),
		ReconnectInterval: config.Config().ReconnectInterval,
		MaxRetries:        config.Config().MaxRetries,
		Logger:            zerolog.Nop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})

	keys := apikey.NewStore(
		filepath.Join(t.TempDir(), "apikeys.json"),
		config.Config().AdminAPIKey,
	)

	srv, err := New(manager, keys)
	require.NoError(t, err)
	srv.MountHandlers()

	return &testEnv{server: srv, dialer: dialer, keys: keys}
}

func (e *testEnv) do(t *testing.T, method, target, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Buffer
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewBuffer(b)
	} else {
		rd = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	rec := httptest.NewRecorder()
	e.server.Router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestLiveness(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp map[string]string
	decode(t, rec, &rsp)
	assert.Equal(t, "online", rsp["status"])
}

func TestCreateSessionIssuesKey(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/session/create", "", map[string]string{
		"sessionId": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp CreateSessionRsp
	decode(t, rec, &rsp)
	assert.True(t, rsp.Success)
	assert.Equal(t, "alice", rsp.SessionID)
	require.NotEmpty(t, rsp.APIKey)

	id, ok := e.keys.Resolve(rsp.APIKey)
	require.True(t, ok)
	assert.Equal(t, "alice", id)

	// the connection attempt runs in the background
	require.Eventually(t, func() bool {
		return e.dialer.DialCount("alice") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCreateSessionGeneratesID(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/session/create", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp CreateSessionRsp
	decode(t, rec, &rsp)
	assert.NotEmpty(t, rsp.SessionID)
	assert.NotEmpty(t, rsp.APIKey)
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/session/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/session/status", "no-such-key", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthViaQueryParam(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/session/status?apiKey="+key, nil)
	rec := httptest.NewRecorder()
	e.server.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func createSessionKey(t *testing.T, e *testEnv, sessionID string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/session/create", "", map[string]string{
		"sessionId": sessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var rsp CreateSessionRsp
	decode(t, rec, &rsp)
	return rsp.APIKey
}

func TestQRFlow(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	require.Eventually(t, func() bool {
		return e.dialer.Client("alice") != nil
	}, time.Second, 5*time.Millisecond)

	// no pairing artifact yet
	rec := e.do(t, http.MethodGet, "/api/session/qr", key, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e.dialer.Client("alice").EmitPairingCode("pair-me")
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/session/qr", key, nil)
		return rec.Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	rec = e.do(t, http.MethodGet, "/api/session/qr", key, nil)
	var rsp QRRsp
	decode(t, rec, &rsp)
	assert.True(t, rsp.Success)
	assert.False(t, rsp.Connected)
	assert.Contains(t, rsp.QR, "data:image/png;base64,")

	// once paired the endpoint reports the identity instead
	e.dialer.Client("alice").EmitConnected(protocol.Identity{ID: "628111@s.whatsapp.net", Name: "Alice"})
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/session/qr", key, nil)
		var rsp QRRsp
		decode(t, rec, &rsp)
		return rsp.Connected
	}, time.Second, 5*time.Millisecond)
}

func TestStatusReportsConnection(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	rec := e.do(t, http.MethodGet, "/api/session/status", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rsp StatusRsp
	decode(t, rec, &rsp)
	assert.True(t, rsp.Success)
	assert.False(t, rsp.Connected)

	e.dialer.Client("alice").EmitConnected(protocol.Identity{ID: "628111@s.whatsapp.net"})
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodGet, "/api/session/status", key, nil)
		var rsp StatusRsp
		decode(t, rec, &rsp)
		return rsp.Connected && rsp.User != nil
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessage(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	require.Eventually(t, func() bool {
		return e.dialer.Client("alice") != nil
	}, time.Second, 5*time.Millisecond)

	// not authenticated yet
	rec := e.do(t, http.MethodPost, "/api/send", key, map[string]string{
		"to": "081234567890", "message": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.dialer.Client("alice").EmitConnected(protocol.Identity{ID: "628111@s.whatsapp.net"})
	require.Eventually(t, func() bool {
		rec := e.do(t, http.MethodPost, "/api/send", key, map[string]string{
			"to": "081234567890", "message": "hi",
		})
		return rec.Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	sent := e.dialer.Client("alice").SentMessages()
	require.NotEmpty(t, sent)
	assert.Equal(t, protocol.Address("6281234567890@s.whatsapp.net"), sent[len(sent)-1].To)
}

func TestSendValidatesRequest(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	rec := e.do(t, http.MethodPost, "/api/send", key, map[string]string{
		"to": "081234567890",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/send", key, map[string]string{
		"message": "hi",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesKey(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	require.Eventually(t, func() bool {
		return e.dialer.Client("alice") != nil
	}, time.Second, 5*time.Millisecond)

	rec := e.do(t, http.MethodPost, "/api/session/logout", key, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok := e.keys.Resolve(key)
	assert.False(t, ok)

	rec = e.do(t, http.MethodGet, "/api/session/status", key, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminKeySurvivesLogout(t *testing.T) {
	e := newTestEnv(t)
	admin := config.Config().AdminAPIKey

	// admin key binds to the reserved default session without creation
	rec := e.do(t, http.MethodGet, "/api/session/status", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return e.dialer.Client(config.DefaultSessionIdentity) != nil
	}, time.Second, 5*time.Millisecond)

	rec = e.do(t, http.MethodPost, "/api/session/logout", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	id, ok := e.keys.Resolve(admin)
	require.True(t, ok)
	assert.Equal(t, config.DefaultSessionIdentity, id)
}

func TestListKeysAdminOnly(t *testing.T) {
	e := newTestEnv(t)
	key := createSessionKey(t, e, "alice")

	rec := e.do(t, http.MethodGet, "/api/keys", key, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/keys", config.Config().AdminAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rsp KeysRsp
	decode(t, rec, &rsp)
	assert.True(t, rsp.Success)
	require.Len(t, rsp.Keys, 1)
	assert.Equal(t, "alice", rsp.Keys[key].SessionID)
}

func TestErrorEnvelope(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/session/status", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var rsp map[string]any
	decode(t, rec, &rsp)
	assert.Equal(t, false, rsp["success"])
	assert.NotEmpty(t, rsp["error"])
}
