// Package id provides the 128-bit sortable identifier the broker stamps on
// every message.
//
// An ID is 16 bytes big-endian, a millisecond timestamp followed by a
// sequence number, so byte order is generation order. Its text form is 32
// lowercase hex characters, which is how ids travel on the wire and appear
// in selector expressions and CLI output.
//
//	g := id.NewGenerator()
//	msgID := g.Next()
//	back, _ := id.Parse(msgID.String())
package id
