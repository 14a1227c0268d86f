// Package runtime wires storage, config, and engines into a single KAS
// broker instance. Open restores permanent queues from Pebble and loads the
// user directory and access lists; Close snapshots permanent queue contents
// before closing storage.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//	_ = rt.CheckHealth(ctx)
//	_, _ = rt.Queues().Define(queue.Definition{Name: "ORDERS", Disposition: queue.Permanent})
package runtime
