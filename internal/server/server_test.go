package server

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hpackCodec/internal/helper"
)

func TestBlacklistedRequestsAreRejected(t *testing.T) {
	config := DefaultConfig()
	// httptest requests come from 192.0.2.1
	config.Blacklist = []string{"192.0.2.1"}
	router := NewServer(&config, nil).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	config.Blacklist = []string{"192.0.2.2"}
	router = NewServer(&config, nil).Router()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMalformedRemoteAddressIsRejected(t *testing.T) {
	config := DefaultConfig()
	srv := NewServer(&config, nil)

	assert.True(t, srv.isBlacklisted("no-port"))
	assert.False(t, srv.isBlacklisted("127.0.0.1:4000"))
}

func TestServeAndShutdown(t *testing.T) {
	config := DefaultConfig()
	config.Server.Address = "127.0.0.1:0"
	srv := NewServer(&config, nil)

	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	base := "http://" + ln.Addr().String()

	resp, err := http.Post(base+"/sessions", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, srv.Store().Len())

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "hpack_sessions_active"))
	assert.True(t, strings.Contains(string(body), "hpack_http_requests_total"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenTLSWithMissingCertificate(t *testing.T) {
	config := DefaultConfig()
	config.Server.Address = "127.0.0.1:0"
	config.Server.CertFile = "missing.crt"
	config.Server.KeyFile = "missing.key"

	_, err := NewServer(&config, nil).Listen()
	assert.ErrorContains(t, err, "failed to load certificates")
}

func TestServeTLS(t *testing.T) {
	certPEM, keyPEM, err := helper.GenerateCertificate("hpack", []string{"127.0.0.1"}, time.Hour)
	require.NoError(t, err)

	dir := t.TempDir()
	config := DefaultConfig()
	config.Server.Address = "127.0.0.1:0"
	config.Server.CertFile = filepath.Join(dir, "cert.pem")
	config.Server.KeyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(config.Server.CertFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(config.Server.KeyFile, keyPEM, 0o600))

	srv := NewServer(&config, nil)
	ln, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	resp, err := client.Post("https://"+ln.Addr().String()+"/sessions", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}
