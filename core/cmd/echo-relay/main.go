package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xKoRx/echo/core/internal"
)

func main() {
	configPath := flag.String("config", "", "Archivo YAML de configuración (opcional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "echo-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := internal.LoadConfig(ctx, configPath)
	if err != nil {
		return fmt.Errorf("error cargando configuración: %w", err)
	}

	core, err := internal.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error inicializando relay: %w", err)
	}

	if err := core.Start(); err != nil {
		_ = core.Shutdown()
		return fmt.Errorf("error arrancando relay: %w", err)
	}

	<-ctx.Done()
	return core.Shutdown()
}
