package certauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/certauth/internal/certtest"
)

func TestSecurityInvariantTokensNeverLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := jwtOnlyTestConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(16)
	engine, err := New().
		WithConfig(cfg).
		WithIdentity(testIdentity(t, certtest.ECDSAP256)).
		WithLogger(zap.New(core)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tok, err := engine.Issue(context.Background(), map[string]any{"sub": "alice"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	tampered := tok.Raw[:len(tok.Raw)-4] + "AAAA"
	_, _ = engine.Validate(context.Background(), tampered, ModeInherit)
	_, _ = engine.Validate(context.Background(), "garbage", ModeInherit)
	engine.Close()

	signature := tok.Raw[strings.LastIndexByte(tok.Raw, '.')+1:]
	for _, entry := range logs.All() {
		dump := entry.Message + fmt.Sprint(entry.ContextMap())
		if strings.Contains(dump, signature) || strings.Contains(dump, "garbage") {
			t.Fatalf("log entry leaks token material: %q", dump)
		}
	}
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		dump := fmt.Sprintf("%+v", ev)
		if strings.Contains(dump, signature) || strings.Contains(dump, "garbage") {
			t.Fatalf("audit event leaks token material: %s", dump)
		}
	}
}

func TestSecurityInvariantJWTOnlyValidationStaysStateless(t *testing.T) {
	engine := newJWTOnlyEngine(t, jwtOnlyTestConfig())
	tok, err := engine.Issue(context.Background(), map[string]any{"sub": "alice"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	// No Redis client was ever configured.
	if _, err := engine.Validate(context.Background(), tok.Raw, ModeInherit); err != nil {
		t.Fatalf("expected stateless validation, got %v", err)
	}
	if _, err := engine.Validate(context.Background(), tok.Raw, ModeStrict); !errors.Is(err, ErrRevocationUnavailable) {
		t.Fatalf("expected strict route to fail closed without redis, got %v", err)
	}
}

func TestSecurityInvariantIssuerAndPolicyShareOneLoad(t *testing.T) {
	id := testIdentity(t, certtest.Ed25519)
	engine, err := New().WithIdentity(id).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if engine.Policy().LoadID() != id.LoadID() || engine.issuer.LoadID() != id.LoadID() {
		t.Fatalf("issuer %q and policy %q must both derive from load %q",
			engine.issuer.LoadID(), engine.Policy().LoadID(), id.LoadID())
	}
}

func TestSecurityInvariantAudienceIssuerOffByDefault(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Validation.ValidateAudience || cfg.Validation.ValidateIssuer {
		t.Fatal("audience and issuer checks must default to off")
	}
	codes := cfg.Lint().Codes()
	for _, want := range []string{"audience_validation_disabled", "issuer_validation_disabled"} {
		found := false
		for _, c := range codes {
			found = found || c == want
		}
		if !found {
			t.Fatalf("expected lint %s, got %v", want, codes)
		}
	}
}

func TestSecurityInvariantHighSecurityPresetIsQuiet(t *testing.T) {
	cfg := HighSecurityConfig()
	cfg.Validation.Audience = "api"
	cfg.Validation.Issuer = "https://auth.example"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("preset invalid: %v", err)
	}
	for _, w := range cfg.Lint() {
		if w.Severity >= LintWarn {
			t.Fatalf("unexpected warning %s: %s", w.Code, w.Message)
		}
	}
}
