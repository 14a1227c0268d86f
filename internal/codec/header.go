package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic is the eye-catcher at the start of every frame ("KAS!").
	Magic uint32 = 0x4B415321
	// HeaderSize is the fixed frame header length in bytes.
	HeaderSize = 10
	// DefaultMaxBody bounds a frame body unless overridden.
	DefaultMaxBody uint32 = 4 << 20
)

// Header is the decoded fixed part of a frame.
type Header struct {
	Magic  uint32
	TypeID uint16
	Length uint32
}

// Valid reports whether the magic matches the protocol constant.
func (h Header) Valid() bool { return h.Magic == Magic }

func (h Header) String() string {
	return fmt.Sprintf("magic=%#08x type=%d len=%d", h.Magic, h.TypeID, h.Length)
}

// AppendHeader writes the wire form of h to dst.
func AppendHeader(dst []byte, h Header) []byte {
	var b [HeaderSize]byte
	binary.BigEndian.PutUint32(b[0:4], h.Magic)
	binary.BigEndian.PutUint16(b[4:6], h.TypeID)
	binary.BigEndian.PutUint32(b[6:10], h.Length)
	return append(dst, b[:]...)
}

// ParseHeader decodes the fixed header. It does not validate the magic.
func ParseHeader(b [HeaderSize]byte) Header {
	return Header{
		Magic:  binary.BigEndian.Uint32(b[0:4]),
		TypeID: binary.BigEndian.Uint16(b[4:6]),
		Length: binary.BigEndian.Uint32(b[6:10]),
	}
}
