package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/a3tai/mcp-form-pilot/internal/config"
	"github.com/a3tai/mcp-form-pilot/internal/llm"
	"github.com/a3tai/mcp-form-pilot/internal/logger"
	"github.com/a3tai/mcp-form-pilot/internal/mcp"
	"github.com/a3tai/mcp-form-pilot/internal/session"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, log *logger.Logger) int {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()

		if err := <-serverErrCh; err != nil {
			log.Error("server shutdown with error", "error", err)
			return 1
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Error("server error", "error", err)
			return 1
		}
	}

	log.Info("server stopped")
	return 0
}

// runStdioMode handles stdio mode execution. The parent process controls
// the lifecycle; the server returns when stdin closes.
func runStdioMode(ctx context.Context, server *mcp.Server, log *logger.Logger) int {
	if err := server.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}

func run() int {
	// Check for version flag before parsing other flags
	if versionRequested(os.Args[1:]) {
		printVersion()
		return 0
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	log, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if cfg.IsDebug() {
		log.Debug("starting with configuration", "config", cfg.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clients, err := llm.NewClients(ctx, cfg.LLM, log.With("component", "llm"))
	if err != nil {
		log.Error("failed to create language model clients", "error", err)
		return 1
	}
	defer func() { _ = clients.Close() }()

	svc, closeSession, err := session.FromConfig(ctx, cfg, clients, log)
	if err != nil {
		log.Error("failed to create form session", "error", err)
		return 1
	}
	defer func() { _ = closeSession() }()

	server, err := mcp.NewServer(cfg, svc, log.With("component", "mcp"))
	if err != nil {
		log.Error("failed to create MCP server", "error", err)
		return 1
	}

	if cfg.IsServerMode() {
		return runServerMode(ctx, cancel, server, log)
	}
	return runStdioMode(ctx, server, log)
}

func versionRequested(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("MCP Form Pilot\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
