package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C_KnownVector(t *testing.T) {
	// RFC 3720 test vector: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))
}

func TestUpdateCRC32C_MatchesOneShot(t *testing.T) {
	a := []byte("label-bytes")
	b := []byte("image-bytes")

	whole := CRC32C(append(append([]byte{}, a...), b...))
	split := UpdateCRC32C(UpdateCRC32C(0, a), b)
	assert.Equal(t, whole, split)
}
