// probe connects to a ledger WebSocket endpoint, issues one command, and
// prints the reply.
// Usage: go run ./cmd/probe --config configs/client.example.yaml --command server_info
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/ledgerlink/internal/backoff"
	"github.com/rickgao/ledgerlink/internal/client"
	"github.com/rickgao/ledgerlink/internal/config"
	"github.com/rickgao/ledgerlink/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	command := flag.String("command", "server_info", "command to issue")
	url := flag.String("url", "", "endpoint override")
	verbose := flag.Bool("verbose", false, "debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	opts := client.Options{Logger: logger}
	if *configPath != "" {
		cfg, err := config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		opts.URL = cfg.Client.URL
		opts.RequestTimeout = cfg.Client.RequestTimeout
		opts.Backoff = backoff.Policy{
			InitialDelay: cfg.Client.Backoff.InitialDelay,
			MaxDelay:     cfg.Client.Backoff.MaxDelay,
		}
	}
	if *url != "" {
		opts.URL = *url
	}

	c, err := client.New(opts)
	if err != nil {
		logger.Error("invalid client options", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	defer c.Disconnect(0, "probe done")

	msg, err := c.Request(ctx, *command, nil)
	if err != nil {
		logger.Error("request failed", "command", *command, "error", err)
		os.Exit(1)
	}

	var pretty map[string]any
	if err := json.Unmarshal(msg.Raw, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(msg.Raw))
	}
}
