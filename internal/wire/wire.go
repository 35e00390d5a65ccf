package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("analysiscache: corrupt entry")
	magic4     = [...]byte{'A', 'N', 'C', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is the framed form of a cache entry in byte stores.
type Entry struct {
	CreatedAt int64 // unix nanos
	Cost      float64
	Units     uint32
	JobID     string
	Payload   []byte
}

const hdrLen = 4 + 1 + 1 + 8 + 8 + 4 + 2

// Entry:
//
//	magic(4) | ver(1) | kind(1) | created(i64 be) | cost(f64 bits be) | units(u32 be)
//	jobLen(u16 be) | job(jobLen) | vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) []byte {
	if len(e.JobID) > 0xFFFF {
		panic("analysiscache: job id too long for wire entry")
	}
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.JobID) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.CreatedAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], math.Float64bits(e.Cost))
	buf.Write(u8[:])
	binary.BigEndian.PutUint32(u4[:], e.Units)
	buf.Write(u4[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.JobID)))
	buf.Write(u2[:])
	buf.WriteString(e.JobID)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// DecodeEntry parses a framed entry. Payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, ErrCorrupt
	}
	off := 6

	var e Entry
	e.CreatedAt = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.Cost = math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	e.Units = binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	jlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if jlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	e.JobID = string(b[off : off+jlen])
	off += jlen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact length; trailing bytes mean a foreign or truncated write
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}
