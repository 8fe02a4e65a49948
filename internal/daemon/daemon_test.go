package daemon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/fx"
)

func TestDaemonLifecycle(t *testing.T) {
	tmpDir := t.TempDir()

	var srv *Server
	app := fx.New(
		Module(Params{DataDir: tmpDir, ListenAddr: "127.0.0.1:0"}),
		fx.Populate(&srv),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The control surface answers once started.
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + srv.Addr() + "/api/v1/companies")
	if err != nil {
		t.Fatalf("companies: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("companies status = %d", resp.StatusCode)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSecondDaemonFailsOnLock(t *testing.T) {
	tmpDir := t.TempDir()

	var srv *Server
	app := fx.New(
		Module(Params{DataDir: tmpDir, ListenAddr: "127.0.0.1:0"}),
		fx.Populate(&srv),
		fx.NopLogger,
	)
	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	second := fx.New(
		Module(Params{DataDir: tmpDir, ListenAddr: "127.0.0.1:0"}),
		fx.NopLogger,
	)
	secondCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := second.Start(secondCtx); err == nil {
		_ = second.Stop(context.Background())
		t.Fatal("second daemon on the same data dir should fail to start")
	}
}
