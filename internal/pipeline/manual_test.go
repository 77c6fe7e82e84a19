package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	ferrors "github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

func TestParseInputToken(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, dir, "data.yaml", "a: 1\n")
	reg := formats.Default()

	tests := []struct {
		name   string
		tok    string
		sniff  bool
		kind   SourceKind
		format formats.ID
	}{
		{"dash", "-", false, SourceStdin, ""},
		{"stdin alias", "stdin", false, SourceStdin, ""},
		{"inline", `={"a":1}`, false, SourceInline, ""},
		{"forced path", "@" + existing, false, SourceFile, formats.YAML},
		{"plain path", existing, false, SourceFile, formats.YAML},
		{"compressed path", "rows.csv.gz", false, SourceFile, formats.CSV},
		{"unknown extension", "notes.dat", false, SourceFile, ""},
		{"sniffed inline", `{"a":1}`, true, SourceInline, ""},
		{"sniffed file", existing, true, SourceFile, formats.YAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := ParseInputToken(reg, tt.tok, tt.sniff)
			assert.Equal(t, tt.kind, spec.Source.Kind)
			assert.Equal(t, tt.format, spec.Format)
		})
	}
}

func TestParseOutputToken(t *testing.T) {
	reg := formats.Default()
	tests := []struct {
		tok    string
		kind   SinkKind
		path   string
		format formats.ID
	}{
		{"-", SinkStdout, "", formats.JSON},
		{"stdout", SinkStdout, "", formats.JSON},
		{"stderr", SinkStderr, "", formats.JSON},
		{"@stderr", SinkFile, "stderr", formats.JSON},
		{"out.toml", SinkFile, "out.toml", formats.TOML},
		{"out.csv.zst", SinkFile, "out.csv.zst", formats.CSV},
		{"out", SinkFile, "out", formats.JSON},
	}
	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			spec := ParseOutputToken(reg, tt.tok)
			assert.Equal(t, tt.kind, spec.Sink.Kind)
			assert.Equal(t, tt.path, spec.Sink.Path)
			assert.Equal(t, tt.format, spec.Format)
		})
	}
}

func TestManualOneToOne(t *testing.T) {
	t.Run("array stays an array", func(t *testing.T) {
		dir := t.TempDir()
		in := writeFile(t, dir, "in.json", `[{"a":1},{"a":2}]`)
		out := filepath.Join(dir, "out.json")

		_, err := NewManual(Options{Logger: zaptest.NewLogger(t)}).OneToOne(context.Background(), in, out)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, value.EqualAll(
			[]value.Value{value.Array(value.Obj("a", 1), value.Obj("a", 2))},
			decodeJSON(t, data)))
	})

	t.Run("stdin to stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		m := NewManual(Options{
			Logger: zaptest.NewLogger(t),
			Stdin:  bytes.NewBufferString(`[1,2,3]`),
			Stdout: &stdout,
		})
		_, err := m.OneToOne(context.Background(), "-", "-")
		require.NoError(t, err)
		assert.True(t, value.EqualAll(
			[]value.Value{value.Array(value.Int(1), value.Int(2), value.Int(3))},
			decodeJSON(t, stdout.Bytes())))
	})

	t.Run("yaml to toml by extension", func(t *testing.T) {
		dir := t.TempDir()
		in := writeFile(t, dir, "cfg.yaml", "title: demo\nport: 8080\n")
		out := filepath.Join(dir, "cfg.toml")

		_, err := NewManual(Options{Logger: zaptest.NewLogger(t)}).OneToOne(context.Background(), in, out)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		values, err := formats.TOMLCodec{}.Decode(data)
		require.NoError(t, err)
		assert.True(t, value.EqualAll([]value.Value{value.Obj("title", "demo", "port", 8080)}, values))
	})

	t.Run("missing input fails fast", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "out.json")
		_, err := NewManual(Options{Logger: zaptest.NewLogger(t)}).OneToOne(context.Background(), filepath.Join(dir, "nope.json"), out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[Open]")
		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestManualMultiIn(t *testing.T) {
	t.Run("stdin and files in argument order", func(t *testing.T) {
		dir := t.TempDir()
		first := writeFile(t, dir, "input1.json", `{"source":"file1"}`)
		second := writeFile(t, dir, "input2.json", `{"source":"file2"}`)
		out := filepath.Join(dir, "out.json")

		m := NewManual(Options{
			Logger: zaptest.NewLogger(t),
			Stdin:  bytes.NewBufferString(`{"source":"stdin"}`),
		})
		report, err := m.MultiIn(context.Background(), out, []string{"-", first, second})
		require.NoError(t, err)
		assert.Len(t, report.Values, 3)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, value.EqualAll([]value.Value{value.Array(
			value.Obj("source", "stdin"),
			value.Obj("source", "file1"),
			value.Obj("source", "file2"),
		)}, decodeJSON(t, data)))
	})

	t.Run("single input is still an array", func(t *testing.T) {
		var stdout bytes.Buffer
		m := NewManual(Options{Logger: zaptest.NewLogger(t), Stdout: &stdout})
		_, err := m.MultiIn(context.Background(), "-", []string{`={"a":1}`})
		require.NoError(t, err)
		assert.True(t, value.EqualAll([]value.Value{value.Array(value.Obj("a", 1))}, decodeJSON(t, stdout.Bytes())))
	})

	t.Run("repeated paths get distinct ids", func(t *testing.T) {
		dir := t.TempDir()
		in := writeFile(t, dir, "same.json", `{"x":1}`)
		var stdout bytes.Buffer
		m := NewManual(Options{Logger: zaptest.NewLogger(t), Stdout: &stdout})
		_, err := m.MultiIn(context.Background(), "-", []string{in, in})
		require.NoError(t, err)
		assert.True(t, value.EqualAll([]value.Value{value.Array(value.Obj("x", 1), value.Obj("x", 1))}, decodeJSON(t, stdout.Bytes())))
	})

	t.Run("requires an input", func(t *testing.T) {
		_, err := NewManual(Options{Logger: zaptest.NewLogger(t)}).MultiIn(context.Background(), "-", nil)
		require.Error(t, err)
		assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeUsage))
		assert.Contains(t, err.Error(), "--multi-in requires at least one input")
	})
}

func TestManualFlags(t *testing.T) {
	dir := t.TempDir()
	rows := writeFile(t, dir, "rows.csv", "name\nalice\nbob\n")
	forced := filepath.Join(dir, "stderr")

	var stdout, stderr bytes.Buffer
	m := NewManual(Options{Logger: zaptest.NewLogger(t), Stdout: &stdout, Stderr: &stderr})
	_, err := m.Flags(context.Background(),
		[]string{`{"a":1,"b":2}`, rows},
		[]string{"stdout", "stderr", "@" + forced})
	require.NoError(t, err)

	want := []value.Value{value.Array(
		value.Obj("a", 1, "b", 2),
		value.Array(value.Obj("name", "alice"), value.Obj("name", "bob")),
	)}
	assert.True(t, value.EqualAll(want, decodeJSON(t, stdout.Bytes())))
	assert.True(t, value.EqualAll(want, decodeJSON(t, stderr.Bytes())))

	data, err := os.ReadFile(forced)
	require.NoError(t, err)
	assert.True(t, value.EqualAll(want, decodeJSON(t, data)))

	t.Run("requires both sides", func(t *testing.T) {
		_, err := m.Flags(context.Background(), nil, []string{"stdout"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing --input/--output")
	})
}
