package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated enough to compress: " +
		"the quick brown fox jumps over the lazy dog")

	for _, c := range []Codec{None, Gzip, Snappy, LZ4, Zstd} {
		t.Run(string(c), func(t *testing.T) {
			encoded, err := Encode(c, payload)
			require.NoError(t, err)

			decoded, err := Decode(c, encoded)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestSaramaCode(t *testing.T) {
	for _, c := range []Codec{None, Gzip, Snappy, LZ4, Zstd} {
		_, err := c.SaramaCode()
		assert.NoError(t, err)
	}

	_, err := Codec("bogus").SaramaCode()
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Gzip.Valid())
	assert.True(t, None.Valid())
	assert.True(t, Codec("").Valid())
	assert.False(t, Codec("bogus").Valid())
}
