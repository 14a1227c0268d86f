// Package httpserver provides the read-only HTTP admin surface of a KAS
// broker: health, Prometheus metrics and a JSON view of the queues.
//
// Routes:
//
//	GET /v1/healthz          storage health
//	GET /metrics             Prometheus exposition
//	GET /v1/queues?pattern=  queues whose name matches pattern
//	GET /v1/queues/{name}    one queue
//
// The queue routes take HTTP basic auth against the configured users and
// apply the broker's QUERY rules: COMMAND QUERY execute, then QUEUE read per
// queue.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, "127.0.0.1:14562")
package httpserver
