// Package queuestore persists permanent queues in Pebble.
//
// Definitions live under q/def/<NAME> as JSON and are written when a queue is
// defined and removed when it is deleted. Contents are written as a snapshot
// under q/msg/<NAME>/<seq> when the broker stops and loaded back into the
// registry when it starts. Each message value is a codec frame compressed
// with zstd inside a CRC32C-checked record.
package queuestore
