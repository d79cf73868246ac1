// Package compress implements the payload codecs a record frame may declare.
package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the codec applied to a stored image payload.
type Type uint8

const (
	// None stores the payload verbatim.
	None Type = 0
	// LZ4 uses LZ4 block compression.
	LZ4 Type = 1
	// ZSTD uses zstd at the default level.
	ZSTD Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compress.Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known codec.
func (t Type) Valid() bool {
	return t <= ZSTD
}

var (
	// ErrUnknownType is returned for a codec byte this build does not know.
	ErrUnknownType = errors.New("compress: unknown type")
	// ErrSizeMismatch is returned when decoded output disagrees with the
	// recorded uncompressed length.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data with t. When the codec does not shrink the input
// below 90% of its size, Encode returns the input with None so readers skip
// the decode step.
func Encode(data []byte, t Type) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var (
		out []byte
		err error
	)
	switch t {
	case LZ4:
		out, err = encodeLZ4(data)
	case ZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if err != nil {
		return nil, None, err
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return data, None, nil
	}
	return out, t, nil
}

func encodeLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Decode reverses Encode. size is the uncompressed length recorded next to
// the payload.
func Decode(data []byte, t Type, size int) ([]byte, error) {
	switch t {
	case None:
		if len(data) != size {
			return nil, ErrSizeMismatch
		}
		return data, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, err
		}
		if len(out) != size {
			return nil, ErrSizeMismatch
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
}
