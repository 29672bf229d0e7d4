package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"peerdex/internal/ipfs"
	"peerdex/internal/store"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "peerdex",
	Short: "Share and discover content on your local IPFS network",
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the catalog database")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

// ResolveDBPath finds the catalog location: PEERDEX_DB env > --db flag >
// per-user config dir.
func ResolveDBPath() (string, error) {
	if env := os.Getenv("PEERDEX_DB"); env != "" {
		return env, nil
	}
	if dbPath != "" {
		return dbPath, nil
	}
	return store.DefaultPath()
}

// OpenStore resolves and opens the catalog database
func OpenStore() (*store.Store, error) {
	path, err := ResolveDBPath()
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

// NewLogger builds the console logger handed to the engines. Warnings
// and up by default; everything under --verbose.
func NewLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// EnsureDaemon checks the ipfs binary and starts the daemon if it is not
// already answering.
func EnsureDaemon(ctx context.Context, client *ipfs.Client) error {
	if !client.Installed() {
		return fmt.Errorf("%w: ipfs is not installed", ipfs.ErrDaemonUnavailable)
	}
	if client.DaemonRunning(ctx) {
		return nil
	}
	fmt.Fprintln(os.Stderr, "[peerdex] Starting IPFS daemon...")
	if err := client.StartDaemon(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "[peerdex] IPFS daemon started.")
	return nil
}
