package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecLiteralRoundTrip(t *testing.T) {
	in := []float32{0.125, -1, 0, 3.5e-5}
	out, err := parseVec(vecLiteral(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseVec(t *testing.T) {
	t.Run("null column", func(t *testing.T) {
		out, err := parseVec("")
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("empty vector", func(t *testing.T) {
		out, err := parseVec("[]")
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("spaces after commas", func(t *testing.T) {
		out, err := parseVec("[0.1, 0.2, 0.3]")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, out)
	})

	t.Run("missing brackets", func(t *testing.T) {
		_, err := parseVec("0.1,0.2")
		assert.Error(t, err)
	})

	t.Run("non-numeric element", func(t *testing.T) {
		_, err := parseVec("[0.1,abc]")
		assert.Error(t, err)
	})
}
