package main

import (
	chatclient "chat-relay/client"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string        `env:"CHAT_SERVER_ADDR,default=localhost:4242"`
	Name          string        `env:"CHAT_NAME"`
	DialTimeout   time.Duration `env:"DIAL_TIMEOUT,default=5s"`
	LoginTimeout  time.Duration `env:"LOGIN_TIMEOUT,default=5s"`
	Colours       bool          `env:"CHAT_COLOURS,default=true"`
	LogLevel      string        `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the connection lifecycle: dial, login handshake, then the
// concurrent send/receive loops until disconnect or Ctrl+C.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	name := config.Name
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	if name == "" {
		return exitConfig, fmt.Errorf("missing display name: pass it as argument or set CHAT_NAME")
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect and claim the display name.
	conn, err := net.DialTimeout("tcp", config.ServerAddress, config.DialTimeout)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer conn.Close()

	renderer := chatclient.NewRenderer(os.Stdout, config.Colours)
	c := chatclient.New(log, conn, renderer)

	accepted, err := c.Login(name, config.LoginTimeout)
	if err != nil {
		return exitRuntime, err
	}
	fmt.Printf(">>> Connected to %s as %s (Ctrl+C or /quit to leave)\n", config.ServerAddress, accepted)

	// 4. Dual loop until either path ends.
	if err := c.Run(ctx, os.Stdin); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
