package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompress(t *testing.T) {
	original := []byte("name,age\nalice,30\nbob,25\n" +
		"repetitive content content content content to improve compression ratio")

	for _, alg := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		t.Run(string(alg), func(t *testing.T) {
			compressed, err := Compress(alg, Default, original)
			require.NoError(t, err)
			if alg != None {
				assert.False(t, bytes.Equal(original, compressed), "payload should be transformed")
			}

			decompressed, err := Decompress(alg, compressed)
			require.NoError(t, err)
			assert.Equal(t, original, decompressed)
		})
	}
}

func TestFromPath(t *testing.T) {
	tests := []struct {
		path string
		alg  Algorithm
		rest string
	}{
		{"rows.csv.gz", Gzip, "rows.csv"},
		{"/data/doc.JSON.ZST", Zstd, "/data/doc.JSON"},
		{"a.yaml.lz4", LZ4, "a.yaml"},
		{"b.json.s2", S2, "b.json"},
		{"plain.json", None, "plain.json"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			alg, rest := FromPath(tt.path)
			assert.Equal(t, tt.alg, alg)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	alg, err = ParseAlgorithm("GZ")
	require.NoError(t, err)
	assert.Equal(t, Gzip, alg)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)
}

func TestGzipReaderRejectsGarbage(t *testing.T) {
	_, err := Decompress(Gzip, []byte("not gzip"))
	assert.Error(t, err)
}
