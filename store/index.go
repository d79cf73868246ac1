package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/pixpipe/internal/compress"
	"github.com/hupe1980/pixpipe/internal/hash"
	"github.com/hupe1980/pixpipe/record"
)

// Entry locates one record in the store file.
type Entry struct {
	Record int
	Offset int64
	// Length covers the frame and body, excluding alignment padding.
	Length uint32
	Kind   record.LabelKind
	Class  int32
}

// Index is the immutable entry table of an open store. It is safe for
// concurrent use.
type Index struct {
	entries []Entry
	size    int64
}

// Len returns the number of records.
func (ix *Index) Len() int { return len(ix.entries) }

// At returns entry n. It panics when n is out of range.
func (ix *Index) At(n int) Entry { return ix.entries[n] }

// Entries returns the entry table. Callers must not modify it.
func (ix *Index) Entries() []Entry { return ix.entries }

// Classes partitions record numbers by class. Records without a class are
// collected under record.NoClass.
func (ix *Index) Classes() map[int32]*roaring.Bitmap {
	out := make(map[int32]*roaring.Bitmap)
	for _, e := range ix.entries {
		bm, ok := out[e.Class]
		if !ok {
			bm = roaring.New()
			out[e.Class] = bm
		}
		bm.Add(uint32(e.Record))
	}
	return out
}

// Sidecar layout: [magic 8][compression 1][reserved 3][rawLen 4][crc32c(raw) 4][payload]
// raw: [storeSize 8][count 8] then count × [offset 8][length 4][kind 1][reserved 3][class 4]
const (
	sidecarMagic      = "PIXPIDX1"
	sidecarHeaderSize = 20
	sidecarEntrySize  = 20
)

var errStaleSidecar = errors.New("store: stale sidecar")

// SidecarName returns the name of the sidecar index for a store.
func SidecarName(name string) string {
	return name + ".idx"
}

func (ix *Index) marshalSidecar() ([]byte, error) {
	raw := make([]byte, 16, 16+len(ix.entries)*sidecarEntrySize)
	binary.LittleEndian.PutUint64(raw[0:8], uint64(ix.size))
	binary.LittleEndian.PutUint64(raw[8:16], uint64(len(ix.entries)))

	var e [sidecarEntrySize]byte
	for _, ent := range ix.entries {
		binary.LittleEndian.PutUint64(e[0:8], uint64(ent.Offset))
		binary.LittleEndian.PutUint32(e[8:12], ent.Length)
		e[12] = byte(ent.Kind)
		binary.LittleEndian.PutUint32(e[16:20], uint32(ent.Class))
		raw = append(raw, e[:]...)
	}

	payload, t, err := compress.Encode(raw, compress.ZSTD)
	if err != nil {
		return nil, err
	}

	out := make([]byte, sidecarHeaderSize, sidecarHeaderSize+len(payload))
	copy(out[0:8], sidecarMagic)
	out[8] = byte(t)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[16:20], hash.CRC32C(raw))
	return append(out, payload...), nil
}

// unmarshalSidecar decodes a sidecar and checks it against the store it
// claims to describe.
func unmarshalSidecar(b []byte, storeSize int64, count uint64) (*Index, error) {
	if len(b) < sidecarHeaderSize || string(b[0:8]) != sidecarMagic {
		return nil, fmt.Errorf("%w: bad header", errStaleSidecar)
	}
	t := compress.Type(b[8])
	rawLen := int(binary.LittleEndian.Uint32(b[12:16]))
	crc := binary.LittleEndian.Uint32(b[16:20])

	raw, err := compress.Decode(b[sidecarHeaderSize:], t, rawLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errStaleSidecar, err)
	}
	if hash.CRC32C(raw) != crc || len(raw) < 16 {
		return nil, fmt.Errorf("%w: checksum mismatch", errStaleSidecar)
	}

	size := int64(binary.LittleEndian.Uint64(raw[0:8]))
	n := binary.LittleEndian.Uint64(raw[8:16])
	if size != storeSize || n != count {
		return nil, fmt.Errorf("%w: describes %d records in %d bytes, store has %d in %d",
			errStaleSidecar, n, size, count, storeSize)
	}
	if uint64(len(raw)-16) != n*sidecarEntrySize {
		return nil, fmt.Errorf("%w: truncated entry table", errStaleSidecar)
	}

	ix := &Index{entries: make([]Entry, n), size: size}
	prevEnd := int64(headerSize)
	for i := range ix.entries {
		e := raw[16+i*sidecarEntrySize:]
		ent := Entry{
			Record: i,
			Offset: int64(binary.LittleEndian.Uint64(e[0:8])),
			Length: binary.LittleEndian.Uint32(e[8:12]),
			Kind:   record.LabelKind(e[12]),
			Class:  int32(binary.LittleEndian.Uint32(e[16:20])),
		}
		end := ent.Offset + int64(ent.Length)
		if ent.Offset < prevEnd || end > size || ent.Length < frameSize || !ent.Kind.Valid() {
			return nil, fmt.Errorf("%w: invalid entry %d", errStaleSidecar, i)
		}
		prevEnd = end
		ix.entries[i] = ent
	}
	return ix, nil
}
