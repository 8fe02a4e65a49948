package main

import (
	"flag"

	"go.uber.org/fx"

	"github.com/ykovtun/declsync/internal/daemon"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory (default ~/.declsync)")
	configPath := flag.String("config", "", "config file path (default <data-dir>/config.toml)")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			DataDir:    *dataDir,
			ConfigPath: *configPath,
			ListenAddr: *listenAddr,
		}),
	)

	app.Run()
}
