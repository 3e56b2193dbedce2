package certauth

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/internal/certtest"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// writeContainer writes a fresh PKCS#12 container and returns its path.
func writeContainer(t testing.TB, keyType, pass string) string {
	t.Helper()
	b, err := certtest.Generate(t.TempDir(), pass, certtest.Options{KeyType: keyType})
	if err != nil {
		t.Fatalf("generate container: %v", err)
	}
	return b.Path
}

func testIdentity(t testing.TB, keyType string) *certstore.SigningIdentity {
	t.Helper()
	b, err := certtest.Generate("", "pw", certtest.Options{KeyType: keyType})
	if err != nil {
		t.Fatalf("generate container: %v", err)
	}
	id, err := certstore.Parse(b.Data, "pw", time.Now())
	if err != nil {
		t.Fatalf("parse container: %v", err)
	}
	return id
}

func jwtOnlyTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	return cfg
}

func strictTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.IncludeTokenID = true
	cfg.ValidationMode = ModeStrict
	cfg.Metrics.Enabled = true
	return cfg
}

func newJWTOnlyEngine(t testing.TB, cfg Config) *Engine {
	t.Helper()
	engine, err := New().WithConfig(cfg).WithIdentity(testIdentity(t, certtest.Ed25519)).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newStrictEngine(t testing.TB) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	engine, err := New().
		WithConfig(strictTestConfig()).
		WithIdentity(testIdentity(t, certtest.ECDSAP256)).
		WithRedis(rdb).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, mr
}
