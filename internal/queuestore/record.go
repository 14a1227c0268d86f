package queuestore

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Record layout: headerLen(4B BE) | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errBadRecord = errors.New("queuestore: bad record")

const (
	recordVersion byte = 1

	flagZstd byte = 1 << 0
)

// recordHeader precedes the payload of every stored message.
type recordHeader struct {
	Version byte
	Flags   byte
}

func (h recordHeader) bytes() []byte { return []byte{h.Version, h.Flags} }

func encodeRecord(h recordHeader, payload []byte) []byte {
	header := h.bytes()
	out := make([]byte, 0, 4+len(header)+len(payload)+4)
	out = binary.BigEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	out = append(out, payload...)
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

func decodeRecord(b []byte) (recordHeader, []byte, error) {
	if len(b) < 8 {
		return recordHeader{}, nil, errBadRecord
	}
	hlen := int(binary.BigEndian.Uint32(b[:4]))
	if hlen < 2 || 4+hlen+4 > len(b) {
		return recordHeader{}, nil, errBadRecord
	}
	header := b[4 : 4+hlen]
	payload := b[4+hlen : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return recordHeader{}, nil, errBadRecord
	}
	h := recordHeader{Version: header[0], Flags: header[1]}
	if h.Version != recordVersion {
		return h, nil, errBadRecord
	}
	return h, append([]byte(nil), payload...), nil
}
