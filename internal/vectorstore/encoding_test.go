package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorEncoding_RoundTrip(t *testing.T) {
	v := []float32{0.1, -2.5, 0, 3.14159, 1e-7}

	blob := serializeVector(v)
	assert.Len(t, blob, len(v)*4)

	restored, err := deserializeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, v, restored)
}

func TestDeserializeVector_RejectsOddLength(t *testing.T) {
	_, err := deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
