package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Class int     `json:"class"`
}

func TestCodecs_Interoperate(t *testing.T) {
	in := []box{{X: 1.5, Y: 2, Class: 3}}

	a, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)

	var out []box
	require.NoError(t, JSON{}.Unmarshal(a, &out))
	assert.Equal(t, in, out)

	b, err := JSON{}.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}
