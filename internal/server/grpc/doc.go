// Package grpcserver hosts the KAS admin gRPC endpoint. It registers the
// standard grpc.health.v1 service, with status refreshed from the runtime
// storage check, and server reflection.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := grpcserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:14561")
package grpcserver
