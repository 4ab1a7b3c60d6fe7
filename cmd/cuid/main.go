// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/basinlabs/cuid/internal/app"
	"github.com/basinlabs/cuid/internal/config"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfgPath  string
	verbose  bool
	testMode bool
)

var rootCmd = &cobra.Command{
	Use:   "cuid",
	Short: "cuid — local control plane for the AI coding assistant",
	Long:  "cuid mediates between a web client and an AI coding assistant child process: sessions, permissions, push notifications, and live logs, all served over a local HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default: $HOME/.cui/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&testMode, "test-mode", false, "bypass bearer-token auth, for integration tests")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(sessionsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	paths, err := resolvePaths()
	if err != nil {
		return err
	}

	a, err := app.New(app.Options{Paths: paths, TestMode: testMode})
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func resolvePaths() (app.Paths, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return app.Paths{}, err
	}
	if cfgPath != "" {
		paths.ConfigPath = cfgPath
	}
	return paths, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cuid %s\n", Version)
		},
	}
}

// openConfig loads the on-disk config file (without starting a live
// reload watcher), for one-shot CLI subcommands that need to read it
// without standing up the rest of the app.
func openConfig(paths app.Paths) (*config.Store[config.Config], error) {
	machineID, authToken, err := config.BootstrapIdentity()
	if err != nil {
		return nil, err
	}
	defaults := config.Config{MachineID: machineID, AuthToken: authToken}
	config.ApplyDefaults(&defaults)

	return config.Open(paths.ConfigPath, defaults, config.ApplyDefaults, config.Validate)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := resolvePaths()
			if err != nil {
				return err
			}
			store, err := openConfig(paths)
			if err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			defer store.Close()

			fmt.Println("config valid")
			return nil
		},
	})
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect the conversation cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Tell a running `cuid serve` process to clear its parsed-transcript cache, forcing a re-scan on next list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsGC()
		},
	})
	return cmd
}

// runSessionsGC reads the server's own config to find its listen address
// and bearer token, then calls its internal cache-clear route. This
// requires `cuid serve` to already be running; it has no effect on a
// cache that hasn't been constructed yet.
func runSessionsGC() error {
	paths, err := resolvePaths()
	if err != nil {
		return err
	}
	store, err := openConfig(paths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := store.Snapshot()
	store.Close()

	url := fmt.Sprintf("http://%s:%d/internal/cache/clear", cfg.Server.Host, cfg.Server.Port)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach running cuid server at %s (is `cuid serve` running?): %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cache clear failed: server returned %s", resp.Status)
	}

	fmt.Println("cache cleared")
	return nil
}
