// Package queue is the in-memory queue engine.
//
// A Queue is a capped, thread-safe container of messages served highest
// priority first and FIFO within one priority. When a put brings the size to
// the threshold the queue becomes SUSPENDED and rejects further puts until a
// get brings the size back under the threshold. Edge crossings are reported
// to the caller as a StateChange value; no callbacks run under the queue
// lock.
//
// Get can wait for a message. Waiters sleep on a channel that every put
// closes, with the poll interval kept as an upper bound between re-checks,
// so a put wakes a waiting consumer immediately.
//
// Registry maps normalized names to queues. Operations on different names
// never share a lock.
package queue
