package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alofquist/slinkdash/internal/avr"
	"github.com/alofquist/slinkdash/internal/server"
	"github.com/alofquist/slinkdash/web"
)

func main() {
	configPath := flag.String("config", "/etc/slinkdash/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with a simulated receiver")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] slinkdash starting")

	// Load config
	cfg := server.LoadConfig(*configPath)

	if *demo {
		cfg.AVR.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	// Create context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	// The real engine opens its serial link lazily on the first poll
	// and retries on every command, so no connect loop is needed here.
	var controller avr.Controller
	switch cfg.AVR.Type {
	case "slink":
		controller = avr.NewSlink(cfg.AVR.SlinkConfig())
	default:
		controller = avr.NewDemo()
	}
	defer controller.Close()

	srv := server.New(cfg, controller, web.FS)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] server exited: %v", err)
	}
}
