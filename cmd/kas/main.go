package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	clientcmd "github.com/shyifrah/kas/internal/cmd/client"
	serverrun "github.com/shyifrah/kas/internal/cmd/server"
	cfgpkg "github.com/shyifrah/kas/internal/config"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
	logpkg "github.com/shyifrah/kas/pkg/log"
)

func main() {
	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "kas: .env: %v\n", err)
	}

	rootCmd := clientcmd.NewRoot()
	rootCmd.Short = "KAS message-queue broker"
	rootCmd.Long = "KAS is a single-binary message-queue broker. This CLI runs the server and performs queue operations."
	rootCmd.SilenceUsage = true

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverCmd.AddCommand(newServerStartCommand(), clientcmd.NewShutdownCommand())
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServerStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the broker with its admin gRPC and HTTP endpoints",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(path)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("listen"); v != "" {
				cfg.Listen.Broker = v
			}
			if cmd.Flags().Changed("grpc") {
				cfg.Listen.GRPC, _ = cmd.Flags().GetString("grpc")
			}
			if cmd.Flags().Changed("http") {
				cfg.Listen.HTTP, _ = cmd.Flags().GetString("http")
			}
			if v, _ := cmd.Flags().GetString("fsync"); v != "" {
				cfg.Fsync = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}
			mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
			if err != nil {
				return fmt.Errorf("invalid fsync mode; use always|interval|never: %w", err)
			}

			logger, err := logpkg.ApplyConfig(&cfg.Log)
			if err != nil {
				return err
			}
			logpkg.RedirectStdLog(logger)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				Fsync:  mode,
				Config: cfg,
				Logger: logger,
				Reload: hangups(ctx),
				LoadConfig: func() (cfgpkg.Config, error) {
					next, err := cfgpkg.Load(path)
					if err != nil {
						return next, err
					}
					cfgpkg.FromEnv(&next)
					return next, nil
				},
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", os.Getenv("KAS_CONFIG"), "Configuration file (.json, .jsonc, .yaml)")
	cmd.Flags().String("data-dir", "", "Data directory (default from config or the OS application data directory)")
	cmd.Flags().String("listen", "", "Broker listen address")
	cmd.Flags().String("grpc", "", "Admin gRPC listen address (empty disables)")
	cmd.Flags().String("http", "", "Admin HTTP listen address (empty disables)")
	cmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", "", "Log format: text|json")
	return cmd
}

// hangups forwards SIGHUP as reload triggers until ctx is done.
func hangups(ctx context.Context) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	out := make(chan struct{}, 1)
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
