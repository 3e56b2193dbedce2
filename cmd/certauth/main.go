// Command certauth inspects, issues and verifies certificate-backed tokens and
// can serve a small demo API guarded by them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp()
	err := newRootCmdFor(a).ExecuteContext(ctx)
	stop()
	os.Exit(a.exitCode(err, os.Stderr))
}
