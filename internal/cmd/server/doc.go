// Package serverrun exposes the Run entrypoint used by the CLI to start a
// KAS broker with its TCP session listener and the gRPC and HTTP admin
// servers, handling lifecycle and shutdown.
//
// Example:
//
//	cfg := config.Default()
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
package serverrun
