package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

// Option configures a Codec.
type Option func(*Codec)

// WithMaxBody sets the largest body accepted or produced. Values <= 0 keep
// the default; values beyond the header's length field are clamped to it.
func WithMaxBody(n int) Option {
	return func(c *Codec) {
		switch {
		case n <= 0:
		case uint64(n) > math.MaxUint32:
			c.maxBody = math.MaxUint32
		default:
			c.maxBody = uint32(n)
		}
	}
}

// Codec encodes and decodes frames for one Registry. It is stateless and
// safe for concurrent use; stream-level serialization is the caller's job
// (see Conn).
type Codec struct {
	reg     *Registry
	maxBody uint32
}

// New returns a codec bound to reg.
func New(reg *Registry, opts ...Option) *Codec {
	c := &Codec{reg: reg, maxBody: DefaultMaxBody}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry returns the registry the codec dispatches on.
func (c *Codec) Registry() *Registry { return c.reg }

// MaxBody returns the body size limit.
func (c *Codec) MaxBody() uint32 { return c.maxBody }

// AppendFrame appends the full frame for rec to dst.
func (c *Codec) AppendFrame(dst []byte, rec Record) ([]byte, error) {
	id := rec.TypeID()
	if !c.reg.Known(id) {
		return dst, &ProtocolError{Err: fmt.Errorf("%w: %d in %s registry", ErrUnknownType, id, c.reg.Name()), TypeID: id}
	}
	body, err := Marshal(rec)
	if err != nil {
		return dst, fmt.Errorf("codec: encode type %d: %w", id, err)
	}
	if uint64(len(body)) > uint64(c.maxBody) {
		return dst, &ProtocolError{Err: fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(body), c.maxBody), TypeID: id}
	}
	dst = AppendHeader(dst, Header{Magic: Magic, TypeID: id, Length: uint32(len(body))})
	return append(dst, body...), nil
}

// Marshal returns the frame for rec.
func (c *Codec) Marshal(rec Record) ([]byte, error) {
	return c.AppendFrame(nil, rec)
}

// Encode writes rec to w with a single Write so header and body are never
// split between concurrent writers that share a lock around Encode.
func (c *Codec) Encode(w io.Writer, rec Record) error {
	frame, err := c.Marshal(rec)
	if err != nil {
		return err
	}
	n, err := w.Write(frame)
	if err != nil {
		return &TransportError{Op: "write", N: n, Err: err}
	}
	return nil
}

// Decode reads one frame from r. See the package documentation for the
// error contract.
func (c *Codec) Decode(r io.Reader) (Record, error) {
	var raw [HeaderSize]byte
	n, err := io.ReadFull(r, raw[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportError{Op: "read header", N: n, Err: err}
	}

	h := ParseHeader(raw)
	if !h.Valid() {
		return nil, &ProtocolError{Err: ErrCorrupted, TypeID: h.TypeID, Raw: raw}
	}
	if h.Length > c.maxBody {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, h.Length, c.maxBody), TypeID: h.TypeID, Raw: raw}
	}
	rec, ok := c.reg.New(h.TypeID)
	if !ok {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %d in %s registry", ErrUnknownType, h.TypeID, c.reg.Name()), TypeID: h.TypeID, Raw: raw}
	}

	body := make([]byte, h.Length)
	if m, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TransportError{Op: "read body", N: HeaderSize + m, Err: err}
	}
	if err := Unmarshal(body, rec); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: %v", ErrMalformedBody, err), TypeID: h.TypeID, Raw: raw}
	}
	if got := rec.TypeID(); got != h.TypeID {
		return nil, &ProtocolError{Err: fmt.Errorf("%w: header type %d carries type %d", ErrMalformedBody, h.TypeID, got), TypeID: h.TypeID, Raw: raw}
	}
	return rec, nil
}

// Unmarshal decodes exactly one frame from b.
func (c *Codec) Unmarshal(b []byte) (Record, error) {
	r := bytes.NewReader(b)
	rec, err := c.Decode(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedBody, r.Len())
	}
	return rec, nil
}
