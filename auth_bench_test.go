package certauth

import (
	"context"
	"testing"

	"github.com/MrEthical07/certauth/internal/certtest"
)

func benchIssue(b *testing.B, keyType string) {
	engine, err := New().WithConfig(DefaultConfig()).WithIdentity(testIdentity(b, keyType)).Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	claims := map[string]any{"sub": "alice"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Issue(context.Background(), claims); err != nil {
			b.Fatalf("issue failed: %v", err)
		}
	}
}

func BenchmarkIssueRSA(b *testing.B)     { benchIssue(b, certtest.RSA) }
func BenchmarkIssueES256(b *testing.B)   { benchIssue(b, certtest.ECDSAP256) }
func BenchmarkIssueEd25519(b *testing.B) { benchIssue(b, certtest.Ed25519) }

func BenchmarkValidateJWTOnly(b *testing.B) {
	engine := newJWTOnlyEngine(b, DefaultConfig())
	tok, err := engine.Issue(context.Background(), map[string]any{"sub": "alice"})
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Validate(context.Background(), tok.Raw, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateStrict(b *testing.B) {
	engine, _ := newStrictEngine(b)
	tok, err := engine.Issue(context.Background(), map[string]any{"sub": "alice"})
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Validate(context.Background(), tok.Raw, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateJWTOnlyParallel(b *testing.B) {
	engine := newJWTOnlyEngine(b, DefaultConfig())
	tok, err := engine.Issue(context.Background(), map[string]any{"sub": "alice"})
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := engine.Validate(context.Background(), tok.Raw, ModeInherit); err != nil {
				b.Errorf("validate failed: %v", err)
				return
			}
		}
	})
}
