package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/formatflow/pkg/compression"
	"github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"go.uber.org/multierr"
)

// openSource opens the raw byte stream of src. The caller owns the result.
func openSource(src Source, stdin io.Reader) (io.ReadCloser, error) {
	switch src.Kind {
	case SourceFile:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "open input file")
		}
		return f, nil
	case SourceStdin:
		if stdin == nil {
			return nil, errors.New(errors.ErrorTypeIO, "stdin is not available")
		}
		return io.NopCloser(stdin), nil
	case SourceInline:
		return io.NopCloser(bytes.NewReader(src.Data)), nil
	}
	return nil, errors.Newf(errors.ErrorTypeIO, "unsupported source kind %s", src.Kind)
}

// readSource drains rc through the decompressor for alg and releases rc on
// every path. Close failures are merged into the returned error.
func readSource(rc io.ReadCloser, alg compression.Algorithm) (data []byte, err error) {
	defer func() {
		err = multierr.Append(err, rc.Close())
	}()

	r, err := compression.NewReader(alg, rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "open decompressor")
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()

	data, err = io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "read input")
	}
	return data, nil
}

// inputCompression resolves the algorithm for in and the path that remains
// once a compression extension is stripped
func inputCompression(in InputSpec) (compression.Algorithm, string) {
	alg, _ := compression.ParseAlgorithm(string(in.Compression))
	if in.Source.Kind != SourceFile {
		return alg, ""
	}
	inferred, rest := compression.FromPath(in.Source.Path)
	if alg == compression.None {
		return inferred, rest
	}
	if inferred == alg {
		return alg, rest
	}
	return alg, in.Source.Path
}

// formatHint returns the registered format claiming the extension of path
func formatHint(reg *formats.Registry, path string) (formats.ID, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	return reg.ForExtension(ext)
}

// detectionOrder puts hint first, followed by order without it
func detectionOrder(hint formats.ID, order []formats.ID) []formats.ID {
	if hint == "" {
		return order
	}
	out := make([]formats.ID, 0, len(order)+1)
	out = append(out, hint)
	for _, id := range order {
		if id != hint {
			out = append(out, id)
		}
	}
	return out
}
