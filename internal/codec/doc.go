// Package codec frames typed records on a byte stream.
//
// A frame is a fixed 10-byte big-endian header followed by a CBOR body:
//
//	magic(4) | type id(2) | body length(4) | body
//
// The type id selects a factory from a Registry; the factory's value is the
// decode target for the body. A Codec pairs one Registry with framing limits
// and a Conn adds per-connection locking and context-aware receive on top of
// a net.Conn.
//
// Decode distinguishes three outcomes besides success: io.EOF when the peer
// closed between frames, *ProtocolError for bad magic, unknown type ids,
// oversized or undecodable bodies (the stream cannot be trusted any more),
// and *TransportError for I/O failures. A transport timeout that consumed no
// bytes leaves the stream aligned and the caller may read again.
package codec
