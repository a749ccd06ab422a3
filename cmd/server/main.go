// Command server runs the vortex API: passkey authentication and polls.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Lordhacker756/vortex-api/internal/app"
	"github.com/Lordhacker756/vortex-api/internal/platform/config"
	"github.com/Lordhacker756/vortex-api/internal/platform/otel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "vortex-api")
	if err != nil {
		log.Printf("tracing setup: %v", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Printf("tracing shutdown: %v", err)
			}
		}()
	}

	if err := app.Run(ctx); err != nil {
		config.Exitf("vortex-api: %v", err)
	}
}
