// @title DawaiLo API
// @version 1.0
// @description Recetas, plan diario de dosis y adherencia para doctores, farmacéuticos y pacientes.
// @BasePath /
package main

import (
	"fmt"
	"os"

	"dawailo/internal/platform/config"
	"dawailo/internal/platform/logger"

	"github.com/alecthomas/kong"
)

// version se pisa con -ldflags "-X main.version=..."
var version = "dev"

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file (yaml/json/toml/env). Environment variables win over it." type:"path" env:"DAWAILO_CONFIG"`

	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API." default:"1"`
	Migrate MigrateCmd `cmd:"" help:"Apply pending database migrations."`
	Seed    SeedCmd    `cmd:"" help:"Create the demo accounts that are missing."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("dawailo"),
		kong.Description("Medicine prescriptions and adherence tracking API"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := &appContext{
		Config: cfg,
		Log: logger.New(logger.Options{
			Level:  logger.ParseLevel(cfg.LogLevel),
			Format: logger.ParseFormat(cfg.LogFormat),
			App:    cfg.AppName,
			File:   cfg.LogFile,
		}),
	}

	if err := kctx.Run(app); err != nil {
		app.Log.Error("command failed", map[string]any{"command": kctx.Command(), "error": err.Error()})
		os.Exit(1)
	}
}
