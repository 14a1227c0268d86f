// Package message defines the application payload carried through queues.
//
// A Message is one struct with shared header fields (id, correlation id,
// priority, timestamp, typed properties) and a Body variant selected by
// Kind: text, bytes, opaque object, ordered map or stream of primitive
// values. A nil Body is the empty kind.
//
// Messages are framed with the codec package through Registry, which binds
// one type id per body kind. Inside a packet a message is encoded
// self-describingly (kind plus raw body) so it can be nested in any record.
package message
