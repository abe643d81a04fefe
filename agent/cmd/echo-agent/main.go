package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xKoRx/echo/agent/internal"
)

func main() {
	configPath := flag.String("config", "", "Archivo YAML de configuración (opcional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "echo-agent: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := internal.LoadConfig(ctx, configPath)
	if err != nil {
		return fmt.Errorf("error cargando configuración: %w", err)
	}

	agent, err := internal.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error inicializando agent: %w", err)
	}

	if err := agent.Start(); err != nil {
		_ = agent.Shutdown()
		return fmt.Errorf("error arrancando agent: %w", err)
	}

	<-ctx.Done()
	return agent.Shutdown()
}
