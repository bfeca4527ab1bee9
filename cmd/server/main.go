package main

import (
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/tcp"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	mask, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation pass over the embedded wordlists.
	var moderator *moderation.Moderator
	if config.ModerationEnabled {
		wordlist, err := moderation.LoadEmbeddedWordlist()
		if err != nil {
			return exitRuntime, fmt.Errorf("loading censored words: %w", err)
		}
		logger.Info(fmt.Sprintf("%d censored files loaded [%s]",
			len(wordlist.Languages), strings.Join(wordlist.Languages, ",")))
		logger.Info(fmt.Sprintf("%d unique censored words loaded", len(wordlist.Words)))

		moderator, err = moderation.NewModerator(wordlist.Words, mask)
		if err != nil {
			return exitRuntime, fmt.Errorf("building moderator: %w", err)
		}
	}

	// 3. Registry, acceptor and supervised background workers.
	registry := runtime.NewRegistry()
	server := tcp.NewServer(logger, registry, moderator, tcp.Options{
		ConnectionBufferSize: config.ConnectionBufferSize,
		SinkTimeout:          config.SinkTimeout,
		WriteTimeout:         config.WriteTimeout,
		MaxLineBytes:         config.MaxLineBytes,
		MalformedTolerance:   config.MalformedTolerance,
	})

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(logger, config.TelemetryInterval, registry))

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 5. TCP listener
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "address", address)
		if err := server.Serve(ctx, listener); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 7. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
