// Package pebblestore provides a thin wrapper around Pebble with fsync policy,
// batches, prefix scans and minimal metrics hooks.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	b := db.NewBatch()
//	_ = b.Set([]byte("q/def/ORDERS"), def, nil)
//	_ = db.CommitBatch(ctx, b)
//	b.Close()
//
//	_ = db.Scan(ctx, []byte("q/def/"), func(k, v []byte) error { return nil })
package pebblestore
