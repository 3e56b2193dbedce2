package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/internal/certtest"
	"github.com/MrEthical07/certauth/internal/rate"
	"github.com/MrEthical07/certauth/internal/settings"
	"github.com/MrEthical07/certauth/middleware"
)

func setupEnv(t *testing.T) {
	t.Helper()
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.ECDSAP256})
	t.Setenv("CERTAUTH_CERTIFICATE_PATH", b.Path)
	t.Setenv("CERTAUTH_CERTIFICATE_PASSPHRASE", "pw")
	t.Setenv("CERTAUTH_LOG_LEVEL", "error")
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInspectJSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "inspect", "-o", "json")
	require.NoError(t, err)

	var v inspectView
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "ES256", v.Algorithm)
	assert.Equal(t, "CN=certauth-test", v.Subject)
	assert.Equal(t, "jwt_only", v.Mode)
	assert.False(t, v.AudienceChecked)
	assert.False(t, v.IssuerChecked)
	assert.Equal(t, "none", v.ExtractionSource)
}

func TestInspectYAMLAndTable(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "inspect", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "algorithm: ES256")
	assert.Contains(t, out, "audience_checked: false")

	out, err = run(t, "", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "ES256")

	_, err = run(t, "", "inspect", "-o", "xml")
	require.Error(t, err)
}

func TestIssueThenVerify(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "issue", "--sub", "alice", "--claim", "tier=2")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.Equal(t, 2, strings.Count(token, "."))

	out, err = run(t, token+"\n", "verify", "-")
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, "alice", claims["sub"])
	assert.EqualValues(t, 2, claims["tier"])

	later := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	_, err = run(t, "", "verify", token, "--at", later)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyRejectsGarbage(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "", "verify", "not-a-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")

	_, err = run(t, "", "verify")
	require.ErrorIs(t, err, certauth.ErrTokenMissing)
}

func TestIssueRequiresSubject(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "", "issue")
	require.Error(t, err)
}

func TestMissingCertificateFailsEarly(t *testing.T) {
	t.Setenv("CERTAUTH_CERTIFICATE_PATH", "")
	_, err := run(t, "", "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Certificate.Path")
}

func TestRouterStrictFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})
	cfg := certauth.DefaultConfig()
	cfg.Certificate.Path = b.Path
	cfg.Certificate.Passphrase = "pw"
	cfg.Token.IncludeTokenID = true
	cfg.Metrics.Enabled = true
	cfg.ValidationMode = certauth.ModeStrict

	engine, err := certauth.New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(newRouter(engine, nil, zap.NewNop()))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/token", "application/json", strings.NewReader(`{"sub":"alice"}`))
	require.NoError(t, err)
	var tok tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, tok.TokenID)

	call := func(method, path string) int {
		req, _ := http.NewRequest(method, srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/whoami"))
	assert.Equal(t, http.StatusNoContent, call(http.MethodPost, "/revoke"))
	assert.Equal(t, http.StatusUnauthorized, call(http.MethodGet, "/whoami"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, body.String(), "certauth_token_issued_total 1")
	assert.Contains(t, body.String(), "certauth_reject_revoked_total 1")
}

func TestRouterTokenRequiresSubject(t *testing.T) {
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})
	cfg := certauth.DefaultConfig()
	cfg.Certificate.Path = b.Path
	cfg.Certificate.Passphrase = "pw"
	engine, err := certauth.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	rec := httptest.NewRecorder()
	newRouter(engine, nil, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(engine, nil, zap.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterErrorsAreProblemDetailsAndLogged(t *testing.T) {
	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})
	cfg := certauth.DefaultConfig()
	cfg.Certificate.Path = b.Path
	cfg.Certificate.Passphrase = "pw"
	engine, err := certauth.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	core, logs := observer.New(zap.InfoLevel)
	h := newRouter(engine, nil, zap.New(core))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.ProblemContentType, rec.Header().Get("Content-Type"))

	var p middleware.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "sub required", p.Detail)
	assert.Equal(t, "/token", p.Instance)
	assert.NotEmpty(t, p.RequestID)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), p.RequestID)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer secret.token.value")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(http.StatusBadRequest), entries[0].ContextMap()["status"])
	assert.Equal(t, "/whoami", entries[1].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusUnauthorized), entries[1].ContextMap()["status"])
	for _, e := range logs.All() {
		assert.NotContains(t, fmt.Sprint(e.ContextMap()), "secret.token.value")
	}
}

func TestRouterIssueLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := certtest.MustGenerate(t, "pw", certtest.Options{KeyType: certtest.Ed25519})
	cfg := certauth.DefaultConfig()
	cfg.Certificate.Path = b.Path
	cfg.Certificate.Passphrase = "pw"
	engine, err := certauth.New().WithConfig(cfg).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	limiter, err := rate.New(rdb, rate.Config{MaxIssues: 1, Window: time.Minute})
	require.NoError(t, err)
	h := newRouter(engine, limiter, zap.NewNop())

	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(`{"sub":"alice"}`)))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, post())
}

func TestEngineSharesOneRedisClientAndReleasesIt(t *testing.T) {
	setupEnv(t)
	mr := miniredis.RunT(t)
	t.Setenv("CERTAUTH_REDIS_ADDR", mr.Addr())

	a := &app{v: settings.NewViper()}
	require.NoError(t, a.init())

	engine, release, err := a.engine()
	require.NoError(t, err)
	require.NotNil(t, engine)

	rdb := a.redis()
	require.NotNil(t, rdb)
	assert.Same(t, rdb, a.redis(), "engine and limiter must share one client")
	require.NoError(t, rdb.Ping(context.Background()).Err())

	release()
	assert.Nil(t, a.rdb)
	assert.ErrorIs(t, rdb.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestExitCodeLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	a := &app{log: zap.New(core)}
	var stderr bytes.Buffer

	assert.Equal(t, 0, a.exitCode(nil, &stderr))
	assert.Empty(t, stderr.String())
	assert.Zero(t, logs.Len())

	assert.Equal(t, 1, a.exitCode(errors.New("listen tcp: address in use"), &stderr))
	assert.Contains(t, stderr.String(), "address in use")
	require.Equal(t, 1, logs.FilterMessage("certauth terminated unexpectedly").Len())

	// Failures before the logger exists still reach stderr.
	stderr.Reset()
	assert.Equal(t, 1, (&app{}).exitCode(errors.New("bad config"), &stderr))
	assert.Contains(t, stderr.String(), "bad config")
}
