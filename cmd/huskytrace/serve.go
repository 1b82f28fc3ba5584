package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/gui"
)

func serveCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// Create server; every GUI tab gets its own session
	server := gui.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), a.cfg, a.newSession, a.logger)

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a.logger.Info("GUI bridge started", zap.String("endpoint", a.analyzer.Endpoint()))
	// Run server
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// signalContext is cancelled on interrupt or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// Listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
