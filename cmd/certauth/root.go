package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MrEthical07/certauth"
	"github.com/MrEthical07/certauth/internal/logging"
	"github.com/MrEthical07/certauth/internal/settings"
)

var version = "dev"

// app carries state shared by subcommands after PersistentPreRunE.
type app struct {
	v        *viper.Viper
	cfgFile  string
	envFile  string
	settings *settings.Settings
	log      *zap.Logger
	rdb      redis.UniversalClient
}

func newApp() *app {
	return &app{v: settings.NewViper()}
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(newApp())
}

func newRootCmdFor(a *app) *cobra.Command {

	root := &cobra.Command{
		Use:     "certauth",
		Short:   "Certificate-backed JWT issuance and validation",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML configuration file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading CERTAUTH_* variables")
	pf.String("cert", "", "PKCS#12 container path (certificate.path)")
	pf.String("mode", "", "validation mode: jwt_only or strict")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("certificate.path", pf.Lookup("cert"))
	_ = a.v.BindPFlag("mode", pf.Lookup("mode"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))

	root.AddCommand(
		newInspectCmd(a),
		newIssueCmd(a),
		newVerifyCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		// A missing .env is normal outside development.
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	s, err := settings.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = s

	l, err := logging.New(logging.Config{
		Env:     s.Log.Env,
		Level:   s.Log.Level,
		Service: "certauth",
		Version: version,
	})
	if err != nil {
		return err
	}
	a.log = l
	return nil
}

// redis returns the one client shared by the engine and the issuance limiter,
// or nil when no address is configured.
func (a *app) redis() redis.UniversalClient {
	if a.rdb == nil {
		a.rdb = a.settings.RedisClient()
	}
	return a.rdb
}

// engine builds an Engine from the loaded settings. Redis is attached when an
// address is configured. release closes the engine, then the Redis client.
func (a *app) engine() (*certauth.Engine, func(), error) {
	cfg, err := a.settings.ToConfig()
	if err != nil {
		return nil, nil, err
	}

	b := certauth.New().WithConfig(cfg).WithLogger(a.log)
	if rdb := a.redis(); rdb != nil {
		b = b.WithRedis(rdb)
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(certauth.NewZapSink(a.log))
	}
	engine, err := b.Build()
	if err != nil {
		a.closeRedis()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		a.closeRedis()
	}, nil
}

func (a *app) closeRedis() {
	if a.rdb == nil {
		return
	}
	if err := a.rdb.Close(); err != nil {
		a.log.Warn("closing redis client", zap.Error(err))
	}
	a.rdb = nil
}

// exitCode reports a failed run through the logger when one was built, then
// flushes it. Errors before logging is configured go to stderr only.
func (a *app) exitCode(err error, stderr io.Writer) int {
	code := 0
	if err != nil {
		code = 1
		fmt.Fprintln(stderr, "error:", err)
		if a.log != nil {
			a.log.Error("certauth terminated unexpectedly", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return code
}
