package store

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/pixpipe/internal/compress"
	"github.com/hupe1980/pixpipe/record"
)

const (
	storeMagic   = "PIXPSTOR" // 8 bytes
	storeVersion = 1
	headerSize   = 32
	frameSize    = 24
	recordAlign  = 8

	flagChecksums uint32 = 1 << 0
)

// MaxRecordSize bounds the body (label plus stored image) of one record.
const MaxRecordSize = 1<<31 - 1

// header: [magic 8][version 4][flags 4][count 8][reserved 8]
type header struct {
	version uint32
	flags   uint32
	count   uint64
}

func (h header) encode() []byte {
	b := make([]byte, headerSize)
	copy(b[0:8], storeMagic)
	binary.LittleEndian.PutUint32(b[8:12], h.version)
	binary.LittleEndian.PutUint32(b[12:16], h.flags)
	binary.LittleEndian.PutUint64(b[16:24], h.count)
	return b
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, corruptf(0, "file too small (%d < %d)", len(b), headerSize)
	}
	if string(b[0:8]) != storeMagic {
		return header{}, corruptf(0, "invalid magic %q", b[0:8])
	}
	h := header{
		version: binary.LittleEndian.Uint32(b[8:12]),
		flags:   binary.LittleEndian.Uint32(b[12:16]),
		count:   binary.LittleEndian.Uint64(b[16:24]),
	}
	if h.version != storeVersion {
		return header{}, &CorruptError{
			Offset: 8,
			Reason: fmt.Sprintf("version %d (expected %d)", h.version, storeVersion),
			err:    ErrVersion,
		}
	}
	return h, nil
}

// frame precedes every record body:
// [bodyLen 4][crc32c 4][kind 1][compression 1][reserved 2][class 4][labelLen 4][imageLen 4]
type frame struct {
	bodyLen  uint32
	crc      uint32
	kind     record.LabelKind
	comp     compress.Type
	class    int32
	labelLen uint32
	imageLen uint32
}

func (f frame) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], f.bodyLen)
	binary.LittleEndian.PutUint32(b[4:8], f.crc)
	b[8] = byte(f.kind)
	b[9] = byte(f.comp)
	b[10], b[11] = 0, 0
	binary.LittleEndian.PutUint32(b[12:16], uint32(f.class))
	binary.LittleEndian.PutUint32(b[16:20], f.labelLen)
	binary.LittleEndian.PutUint32(b[20:24], f.imageLen)
}

func decodeFrame(b []byte, off int64) (frame, error) {
	f := frame{
		bodyLen:  binary.LittleEndian.Uint32(b[0:4]),
		crc:      binary.LittleEndian.Uint32(b[4:8]),
		kind:     record.LabelKind(b[8]),
		comp:     compress.Type(b[9]),
		class:    int32(binary.LittleEndian.Uint32(b[12:16])),
		labelLen: binary.LittleEndian.Uint32(b[16:20]),
		imageLen: binary.LittleEndian.Uint32(b[20:24]),
	}
	switch {
	case !f.kind.Valid():
		return frame{}, corruptf(off, "unknown label kind %d", b[8])
	case !f.comp.Valid():
		return frame{}, corruptf(off, "unknown compression %d", b[9])
	case f.bodyLen > MaxRecordSize:
		return frame{}, corruptf(off, "record length %d exceeds limit", f.bodyLen)
	case f.labelLen > f.bodyLen:
		return frame{}, corruptf(off, "label length %d exceeds body length %d", f.labelLen, f.bodyLen)
	case f.comp == compress.None && f.bodyLen-f.labelLen != f.imageLen:
		return frame{}, corruptf(off, "image length %d does not match stored length %d", f.imageLen, f.bodyLen-f.labelLen)
	}
	return f, nil
}

// padded rounds n up to the record alignment.
func padded(n int64) int64 {
	return (n + recordAlign - 1) &^ (recordAlign - 1)
}
