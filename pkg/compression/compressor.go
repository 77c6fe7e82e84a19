// Package compression wraps file sources and sinks with a compression codec.
//
// # Overview
//
// Pipeline inputs and outputs may name an algorithm explicitly, or it is
// inferred from a trailing extension such as ".gz" or ".zst". The remaining
// extension then selects the data format, so "rows.csv.gz" is gzip-compressed
// CSV.
//
// # Basic Usage
//
//	r, err := compression.NewReader(compression.Zstd, file)
//	defer r.Close()
//
//	w, err := compression.NewWriter(compression.Gzip, compression.Default, file)
//	_, err = w.Write(payload)
//	err = w.Close()
package compression

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var extensions = map[string]Algorithm{
	"gz":      Gzip,
	"gzip":    Gzip,
	"zst":     Zstd,
	"zstd":    Zstd,
	"sz":      Snappy,
	"snappy":  Snappy,
	"s2":      S2,
	"lz4":     LZ4,
	"deflate": Deflate,
}

// ParseAlgorithm normalizes an algorithm name. The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch Algorithm(name) {
	case "":
		return None, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2, Deflate:
		return Algorithm(name), nil
	}
	if alg, ok := extensions[name]; ok {
		return alg, nil
	}
	return "", fmt.Errorf("unsupported compression algorithm: %s", s)
}

// FromPath reports the algorithm implied by the last extension of path and
// the path with that extension removed. Paths without a compression
// extension return None and the path unchanged.
func FromPath(path string) (Algorithm, string) {
	ext := filepath.Ext(path)
	if alg, ok := extensions[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return alg, strings.TrimSuffix(path, ext)
	}
	return None, path
}

// NewReader wraps r with a decompressor. Closing the result releases the
// decompressor only, never r.
func NewReader(alg Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch alg {
	case None, "":
		return io.NopCloser(r), nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gr, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return dec.IOReadCloser(), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case S2:
		return io.NopCloser(s2.NewReader(r)), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Deflate:
		return flate.NewReader(r), nil
	}
	return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
}

// NewWriter wraps w with a compressor. Close must be called to flush the
// trailing frame; it does not close w.
func NewWriter(alg Algorithm, level Level, w io.Writer) (io.WriteCloser, error) {
	switch alg {
	case None, "":
		return nopWriteCloser{w}, nil
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gw, nil
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(mapZstdLevel(level)))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return enc, nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case S2:
		return s2.NewWriter(w), nil
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return lw, nil
	case Deflate:
		fw, err := flate.NewWriter(w, mapGzipLevel(level))
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return fw, nil
	}
	return nil, fmt.Errorf("unsupported compression algorithm: %s", alg)
}

// Compress compresses data in memory
func Compress(alg Algorithm, level Level, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(alg, level, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data in memory
func Decompress(alg Algorithm, data []byte) ([]byte, error) {
	r, err := NewReader(alg, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // decompressor close only releases state
	return io.ReadAll(r)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}
