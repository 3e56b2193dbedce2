// Command certauth-loadtest measures issue and validate throughput for a
// generated or supplied signing certificate.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/certstore"
	"github.com/MrEthical07/certauth/internal/certtest"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 10000, "number of tokens to issue up front")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		keyType     = flag.String("key", certtest.ECDSAP256, "generated key type: rsa, ecdsa-p256, ecdsa-p384, ed25519")
		certPath    = flag.String("cert", "", "PKCS#12 container; if empty a certificate is generated")
		passphrase  = flag.String("passphrase", "", "container passphrase")
		strict      = flag.Bool("strict", false, "also run a strict phase against redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, and ops must be > 0")
		os.Exit(2)
	}
	// The issue phase fills the validation pool.
	if *ops < *tokens {
		fmt.Fprintln(os.Stderr, "ops must be >= tokens")
		os.Exit(2)
	}

	ctx := context.Background()

	identity, err := loadIdentity(*certPath, *passphrase, *keyType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "identity: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("signing with %s (%s)\n", identity.Algorithm(), identity.Metadata().Subject)

	cfg := certauth.DefaultConfig()
	cfg.Token.IncludeTokenID = *strict
	b := certauth.New().WithConfig(cfg).WithIdentity(identity)

	if *strict {
		client, cleanup, err := redisClient(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		b = b.WithRedis(client)
	}

	engine, err := b.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("issuing %d tokens...\n", *ops)
	pool := make([]string, *tokens)
	issueStats := runPhase(*ops, *concurrency, func(i int, _ *rand.Rand) error {
		tok, err := engine.Issue(ctx, map[string]any{"sub": fmt.Sprintf("user-%d", i)})
		if err == nil && i < len(pool) {
			pool[i] = tok.Raw
		}
		return err
	})

	validate := func(mode certauth.RouteMode) phaseStats {
		return runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
			_, err := engine.Validate(ctx, pool[r.Intn(len(pool))], mode)
			return err
		})
	}

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("validate jwt_only", validate(certauth.ModeJWTOnly))
	if *strict {
		printStats("validate strict", validate(certauth.ModeStrict))
	}
}

func loadIdentity(path, passphrase, keyType string) (*certstore.SigningIdentity, error) {
	if path != "" {
		return certstore.Load(path, passphrase)
	}
	bundle, err := certtest.Generate("", "loadtest", certtest.Options{KeyType: keyType, CommonName: "certauth-loadtest"})
	if err != nil {
		return nil, err
	}
	return certstore.Parse(bundle.Data, "loadtest", time.Now())
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase spreads ops calls of fn over concurrency workers. fn receives the
// global operation index.
func runPhase(ops, concurrency int, fn func(i int, r *rand.Rand) error) phaseStats {
	var (
		g         errgroup.Group
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		worker := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				t0 := time.Now()
				if err := fn(i, r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
