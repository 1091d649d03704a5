package main

import (
	"embed"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"tlog.app/go/tlog"

	"github.com/chazu/splice/pkg/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load(os.Getenv("SPLICE_CONFIG"))
	if err != nil {
		tlog.Printw("config", "err", err)
		os.Exit(1)
	}

	app := NewAppWithConfig(cfg)

	err = wails.Run(&options.App{
		Title:  "Splice",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		tlog.Printw("wails", "err", err)
		os.Exit(1)
	}
}
