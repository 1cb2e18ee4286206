package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/config"
	"github.com/GriffinCanCode/sketchgui/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	bindFlags(cfg)
	flag.Parse()

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Run() }()

	select {
	case <-ctx.Done():
		log.Println("Closing GUI session and draining HTTP...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		srv.Close()
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}
}

// bindFlags lets flags override the environment and config file
func bindFlags(cfg *config.Config) {
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port")
	flag.StringVar(&cfg.Control.URL, "control", cfg.Control.URL, "IDE control channel WebSocket URL")
	flag.BoolVar(&cfg.Control.Enabled, "control-enabled", cfg.Control.Enabled, "Connect to the IDE control channel")
	flag.StringVar(&cfg.Content.BaseURL, "content", cfg.Content.BaseURL, "Base URL project content is fetched from")
	flag.StringVar(&cfg.Content.ProjectsDir, "projects", cfg.Content.ProjectsDir, "Directory served at /projects")
	flag.StringVar(&cfg.GUI.StartURL, "start-url", cfg.GUI.StartURL, "Initial GUI location")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development logging")
}
