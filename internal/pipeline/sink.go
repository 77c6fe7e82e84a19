package pipeline

import (
	"io"
	"os"

	"github.com/ajitpratap0/formatflow/pkg/errors"
	"go.uber.org/multierr"
)

// openSink opens the destination of s under policy. Standard streams are
// never closed; files are created with mode 0644 when missing.
func openSink(s Sink, policy FileExistsPolicy, stdout, stderr io.Writer) (io.WriteCloser, error) {
	switch s.Kind {
	case SinkFile:
		flags := os.O_WRONLY | os.O_CREATE
		if policy == Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(s.Path, flags, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "open output file")
		}
		return f, nil
	case SinkStdout:
		return nopWriteCloser{stdout}, nil
	case SinkStderr:
		return nopWriteCloser{stderr}, nil
	case SinkBuffer:
		if policy == Overwrite {
			s.Buffer.Reset()
		}
		return nopWriteCloser{s.Buffer}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeIO, "unsupported sink kind %s", s.Kind)
}

// writeSink writes payload with a single Write call and closes w
func writeSink(w io.WriteCloser, payload []byte) (err error) {
	defer func() {
		err = multierr.Append(err, w.Close())
	}()
	n, err := w.Write(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "write output")
	}
	if n != len(payload) {
		return errors.Wrap(io.ErrShortWrite, errors.ErrorTypeIO, "write output")
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
