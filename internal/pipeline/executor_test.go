package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	ferrors "github.com/ajitpratap0/formatflow/pkg/errors"
	"github.com/ajitpratap0/formatflow/pkg/formats"
	"github.com/ajitpratap0/formatflow/pkg/metrics"
	"github.com/ajitpratap0/formatflow/pkg/value"
)

// eachExecutor runs fn once per scheduler so every behavior is checked for
// parity
func eachExecutor(t *testing.T, fn func(t *testing.T, build func(Options) Executor)) {
	builders := []struct {
		name  string
		build func(Options) Executor
	}{
		{"sync", NewSync},
		{"async", NewAsync},
	}
	for _, b := range builders {
		t.Run(b.name, func(t *testing.T) {
			fn(t, func(opts Options) Executor {
				if opts.Logger == nil {
					opts.Logger = zaptest.NewLogger(t)
				}
				return b.build(opts)
			})
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeJSON(t *testing.T, data []byte) []value.Value {
	t.Helper()
	values, err := formats.JSONCodec{}.Decode(data)
	require.NoError(t, err)
	return values
}

func TestRunJSONToJSON(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		in := writeFile(t, dir, "in.json", `{"a":1}`)
		out := filepath.Join(dir, "out.json")

		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "in", Source: FileSource(in), Format: formats.JSON}},
			Outputs: []OutputSpec{{ID: "out", Sink: FileSink(out), Format: formats.JSON}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"out"}, report.Written)
		assert.Equal(t, formats.JSON, report.Formats["in"])

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, value.EqualAll([]value.Value{value.Obj("a", 1)}, decodeJSON(t, data)))
	})
}

func TestRunCSVToJSONArray(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		in := writeFile(t, dir, "people.csv", "name,age\nalice,30\nbob,25\n")
		var out bytes.Buffer

		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "people", Source: FileSource(in), Format: formats.CSV}},
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(&out), Format: formats.JSON}},
		})
		require.NoError(t, err)

		got := decodeJSON(t, out.Bytes())
		require.Len(t, got, 1)
		rows, ok := got[0].AsArray()
		require.True(t, ok)
		require.Len(t, rows, 2)
		assert.True(t, value.Equal(value.Obj("name", "alice", "age", "30"), rows[0]))
		assert.True(t, value.Equal(value.Obj("name", "bob", "age", "25"), rows[1]))
	})
}

func TestRunUnknownCustomFormatAccumulate(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		var out bytes.Buffer
		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs: []InputSpec{
				{ID: "bad", Source: InlineSource([]byte("k=v")), Format: formats.CustomID("missing-format")},
				{ID: "good", Source: InlineSource([]byte(`{"ok":true}`)), Format: formats.JSON},
			},
			Outputs:     []OutputSpec{{ID: "out", Sink: BufferSink(&out), Format: formats.JSON}},
			ErrorPolicy: Accumulate,
		})
		require.Error(t, err)

		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		require.Len(t, agg.Errors, 1)
		assert.Equal(t, PhaseResolve, agg.Errors[0].Phase)
		assert.True(t, IsUnknownFormat(err))

		msg := err.Error()
		assert.Contains(t, msg, "Unknown format")
		assert.Contains(t, msg, "missing-format")
		assert.Contains(t, msg, "bad")

		// the well-formed input still reaches the output
		require.NotNil(t, report)
		assert.Equal(t, []string{"out"}, report.Written)
		assert.True(t, value.EqualAll([]value.Value{value.Obj("ok", true)}, decodeJSON(t, out.Bytes())))
	})
}

func TestRunPreservesInputOrder(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		var inputs []InputSpec
		var want []value.Value
		for i, name := range []string{"a", "b", "c", "d", "e", "f"} {
			path := writeFile(t, dir, name+".jsonl", `{"n":`+string(rune('0'+i))+`}`+"\n"+`{"m":"`+name+`"}`)
			inputs = append(inputs, InputSpec{ID: name, Source: FileSource(path)})
			want = append(want, value.Obj("n", i), value.Obj("m", name))
		}
		var out bytes.Buffer

		report, err := build(Options{Concurrency: 3}).Run(context.Background(), &Config{
			Inputs:  inputs,
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(&out)}},
		})
		require.NoError(t, err)
		assert.True(t, value.EqualAll(want, report.Values))

		got := decodeJSON(t, out.Bytes())
		require.Len(t, got, 1)
		items, _ := got[0].AsArray()
		assert.True(t, value.EqualAll(want, items))
	})
}

func TestRunFastFailWritesNothing(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		good := writeFile(t, dir, "good.json", `{"a":1}`)
		out := filepath.Join(dir, "out.json")

		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs: []InputSpec{
				{ID: "missing", Source: FileSource(filepath.Join(dir, "nope.json")), Format: formats.JSON},
				{ID: "broken", Source: InlineSource([]byte(`{"a":`)), Format: formats.JSON},
				{ID: "good", Source: FileSource(good)},
			},
			Outputs:     []OutputSpec{{ID: "out", Sink: FileSink(out)}},
			ErrorPolicy: FastFail,
		})
		require.Error(t, err)

		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		require.Len(t, agg.Errors, 1)
		assert.Equal(t, "missing", agg.First().ID)
		assert.Equal(t, PhaseOpen, agg.First().Phase)
		assert.Contains(t, err.Error(), "I/O encountered")
		assert.Contains(t, err.Error(), "[Open] missing:")

		_, statErr := os.Stat(out)
		assert.True(t, os.IsNotExist(statErr), "no output may be written after an input fails")
	})
}

// countingReader records whether anything pulled from it
type countingReader struct {
	reads atomic.Int32
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads.Add(1)
	return 0, io.EOF
}

func TestRunFastFailSkipsLaterReads(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		stdin := &countingReader{}

		_, err := build(Options{Stdin: stdin, Concurrency: 1}).Run(context.Background(), &Config{
			Inputs: []InputSpec{
				{ID: "missing", Source: FileSource(filepath.Join(dir, "nope.json")), Format: formats.JSON},
				{ID: "piped", Source: StdinSource(), Format: formats.JSON},
			},
			Outputs:     []OutputSpec{{ID: "out", Sink: BufferSink(new(bytes.Buffer))}},
			ErrorPolicy: FastFail,
		})
		require.Error(t, err)

		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		require.Len(t, agg.Errors, 1)
		assert.Equal(t, "missing", agg.First().ID)
		assert.Zero(t, stdin.reads.Load(), "stdin must not be read after an earlier input failed")
	})
}

func TestRunAccumulateCollectsEveryFailure(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		var good bytes.Buffer

		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs: []InputSpec{
				{ID: "missing", Source: FileSource(filepath.Join(dir, "nope.json")), Format: formats.JSON},
				{ID: "one", Source: InlineSource([]byte(`{"a":1}`)), Format: formats.JSON},
				{ID: "broken", Source: InlineSource([]byte(`{"a":`)), Format: formats.JSON},
				{ID: "two", Source: InlineSource([]byte(`{"b":2}`)), Format: formats.JSON},
			},
			Outputs: []OutputSpec{
				{ID: "toml", Sink: BufferSink(new(bytes.Buffer)), Format: formats.TOML},
				{ID: "json", Sink: BufferSink(&good), Format: formats.JSON},
				{ID: "nowhere", Sink: FileSink(filepath.Join(dir, "no", "such", "dir.json"))},
			},
			ErrorPolicy: Accumulate,
		})
		require.Error(t, err)

		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		require.Len(t, agg.Errors, 4)

		type tag struct {
			id    string
			phase Phase
		}
		var got []tag
		for _, ue := range agg.Errors {
			got = append(got, tag{ue.ID, ue.Phase})
		}
		assert.Equal(t, []tag{
			{"missing", PhaseOpen},
			{"broken", PhaseParse},
			{"toml", PhaseEncode},
			{"nowhere", PhaseOpen},
		}, got)
		assert.True(t, ferrors.IsType(agg.ForID("broken"), ferrors.ErrorTypeParse))
		assert.Contains(t, err.Error(), "I/O encountered 4 error(s)")

		assert.Equal(t, []string{"json"}, report.Written)
		assert.True(t, value.EqualAll(
			[]value.Value{value.Array(value.Obj("a", 1), value.Obj("b", 2))},
			decodeJSON(t, good.Bytes())))
	})
}

func TestRunFastFailStopsAtFirstOutput(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		var first, third bytes.Buffer
		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs: []InputSpec{
				{ID: "a", Source: InlineSource([]byte(`{"a":1}`))},
				{ID: "b", Source: InlineSource([]byte(`{"b":2}`))},
			},
			Outputs: []OutputSpec{
				{ID: "first", Sink: BufferSink(&first)},
				{ID: "ini", Sink: BufferSink(new(bytes.Buffer)), Format: formats.INI},
				{ID: "third", Sink: BufferSink(&third)},
			},
		})
		require.Error(t, err)

		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		require.Len(t, agg.Errors, 1)
		assert.Equal(t, "ini", agg.First().ID)
		assert.Equal(t, []string{"first"}, report.Written)
		assert.NotEmpty(t, first.String())
		assert.Empty(t, third.String())
	})
}

func TestRunAppendPolicy(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		existing := "line one\n"
		out := writeFile(t, dir, "log.txt", existing)

		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs: []InputSpec{{ID: "in", Source: InlineSource([]byte("alpha\nbeta\n")), Format: formats.Plaintext}},
			Outputs: []OutputSpec{
				{ID: "first", Sink: FileSink(out), Format: formats.Plaintext, FileExists: Append},
				{ID: "second", Sink: FileSink(out), Format: formats.Plaintext, FileExists: Append},
			},
		})
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, existing+"alpha\nbeta\nalpha\nbeta\n", string(data))
	})
}

func TestRunOverwritePolicyTruncates(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		out := writeFile(t, dir, "out.txt", "a much longer previous content\n")

		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte("x")), Format: formats.Plaintext}},
			Outputs: []OutputSpec{{ID: "out", Sink: FileSink(out)}},
		})
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "x\n", string(data))
	})
}

func TestRunStdStreams(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		var stdout, stderr bytes.Buffer
		exec := build(Options{
			Stdin:  bytes.NewBufferString("a: 1\n"),
			Stdout: &stdout,
			Stderr: &stderr,
		})

		report, err := exec.Run(context.Background(), &Config{
			Inputs: []InputSpec{{ID: "stdin", Source: StdinSource()}},
			Outputs: []OutputSpec{
				{ID: "out", Sink: StdoutSink(), Format: formats.JSON},
				{ID: "err", Sink: StderrSink(), Format: formats.YAML},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, formats.YAML, report.Formats["stdin"])
		assert.Equal(t, "{\n  \"a\": 1\n}\n", stdout.String())
		assert.Equal(t, "a: 1\n", stderr.String())
	})
}

func TestRunCompressedFiles(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		dir := t.TempDir()
		packed := filepath.Join(dir, "rows.csv.gz")

		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte(`[{"k":"v"}]`)), Format: formats.JSON}},
			Outputs: []OutputSpec{{ID: "packed", Sink: FileSink(packed)}},
		})
		require.NoError(t, err)

		raw, err := os.ReadFile(packed)
		require.NoError(t, err)
		require.Greater(t, len(raw), 2)
		assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")

		var out bytes.Buffer
		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "packed", Source: FileSource(packed)}},
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(&out), Format: formats.JSON}},
		})
		require.NoError(t, err)
		assert.Equal(t, formats.CSV, report.Formats["packed"])
		assert.True(t, value.EqualAll([]value.Value{value.Obj("k", "v")}, decodeJSON(t, out.Bytes())))
	})
}

func TestRunAutoDetectFollowsOrder(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		var out bytes.Buffer
		report, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:      []InputSpec{{ID: "in", Source: InlineSource([]byte(`{"a":1}`))}},
			Outputs:     []OutputSpec{{ID: "out", Sink: BufferSink(&out)}},
			FormatOrder: []formats.ID{formats.Plaintext, formats.JSON},
		})
		require.NoError(t, err)
		assert.Equal(t, formats.Plaintext, report.Formats["in"])
		assert.True(t, value.EqualAll([]value.Value{value.String(`{"a":1}`)}, report.Values))
	})
}

func TestRunNoFormatMatchedIsParseFailure(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		_, err := build(Options{}).Run(context.Background(), &Config{
			Inputs:      []InputSpec{{ID: "in", Source: InlineSource([]byte(`{"a":`))}},
			Outputs:     []OutputSpec{{ID: "out", Sink: BufferSink(new(bytes.Buffer))}},
			FormatOrder: []formats.ID{formats.JSON, formats.TOML},
		})
		var agg *AggregateError
		require.ErrorAs(t, err, &agg)
		assert.Equal(t, PhaseParse, agg.First().Phase)
		assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeNoFormatMatched))
		assert.Contains(t, err.Error(), "no format matched")
	})
}

func TestRunCustomFormat(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		reg := formats.Default()
		upper := formats.NewCustom("upper", "up").
			WithEncode(func(values []value.Value) ([]byte, error) {
				var b bytes.Buffer
				for _, v := range values {
					b.WriteString(v.Scalar())
					b.WriteByte('\n')
				}
				return bytes.ToUpper(b.Bytes()), nil
			})
		require.NoError(t, reg.RegisterCustom(upper))

		var out bytes.Buffer
		_, err := build(Options{Registry: reg}).Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte("hello\nworld")), Format: formats.Plaintext}},
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(&out), Format: upper.ID()}},
		})
		require.NoError(t, err)
		assert.Equal(t, "HELLO\nWORLD\n", out.String())
		assert.True(t, reg.Frozen())
		assert.Error(t, reg.Register(formats.CustomID("late"), upper.Codec()))
	})
}

func TestRunCanceled(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := build(Options{}).Run(ctx, &Config{
			Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte(`{}`))}},
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(new(bytes.Buffer))}},
		})
		assert.Nil(t, report)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestRunLogsCarryRunContext(t *testing.T) {
	eachExecutor(t, func(t *testing.T, build func(Options) Executor) {
		core, logs := observer.New(zapcore.InfoLevel)
		exec := build(Options{Logger: zap.New(core)})
		report, err := exec.Run(context.Background(), &Config{
			Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte(`{"a":1}`))}},
			Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(new(bytes.Buffer))}},
		})
		require.NoError(t, err)

		started := logs.FilterMessage("pipeline run started").All()
		require.Len(t, started, 1)
		fields := started[0].ContextMap()
		assert.Equal(t, report.RunID, fields["run_id"])
		assert.Equal(t, exec.Name(), fields["executor"])
		assert.Equal(t, "pipeline", fields["component"])
	})
}

func TestRunRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector("formatflow_test")
	var out bytes.Buffer
	_, err := NewSync(Options{Logger: zaptest.NewLogger(t), Metrics: collector}).Run(context.Background(), &Config{
		Inputs:  []InputSpec{{ID: "in", Source: InlineSource([]byte("a: 1"))}},
		Outputs: []OutputSpec{{ID: "out", Sink: BufferSink(&out)}},
	})
	require.NoError(t, err)

	var text bytes.Buffer
	require.NoError(t, collector.WriteText(&text))
	assert.Contains(t, text.String(), `formatflow_test_pipeline_runs_total{executor="sync",status="success"} 1`)
	assert.Contains(t, text.String(), `formatflow_test_detections_total{format="yaml",outcome="matched"} 1`)
}

func TestSyncAsyncParity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"id":1},{"id":2}]`)
	writeFile(t, dir, "b.yaml", "id: 3\n---\nid: 4\n")
	writeFile(t, dir, "c.csv", "id\n5\n")

	run := func(t *testing.T, exec Executor, outDir string) (string, []string) {
		cfg := &Config{
			Inputs: []InputSpec{
				{ID: "a", Source: FileSource(filepath.Join(dir, "a.json"))},
				{ID: "b", Source: FileSource(filepath.Join(dir, "b.yaml"))},
				{ID: "missing", Source: FileSource(filepath.Join(dir, "missing.json"))},
				{ID: "c", Source: FileSource(filepath.Join(dir, "c.csv"))},
			},
			Outputs: []OutputSpec{
				{ID: "json", Sink: FileSink(filepath.Join(outDir, "all.json"))},
				{ID: "log1", Sink: FileSink(filepath.Join(outDir, "all.txt")), FileExists: Append},
				{ID: "yaml", Sink: FileSink(filepath.Join(outDir, "all.yaml"))},
				{ID: "log2", Sink: FileSink(filepath.Join(outDir, "all.txt")), FileExists: Append},
				{ID: "toml", Sink: FileSink(filepath.Join(outDir, "all.toml"))},
			},
			ErrorPolicy: Accumulate,
		}
		_, err := exec.Run(context.Background(), cfg)
		require.Error(t, err)

		var files []string
		for _, name := range []string{"all.json", "all.txt", "all.yaml"} {
			data, rerr := os.ReadFile(filepath.Join(outDir, name))
			require.NoError(t, rerr)
			files = append(files, string(data))
		}
		return err.Error(), files
	}

	syncDir, asyncDir := t.TempDir(), t.TempDir()
	syncErr, syncFiles := run(t, NewSync(Options{Logger: zaptest.NewLogger(t)}), syncDir)
	asyncErr, asyncFiles := run(t, NewAsync(Options{Logger: zaptest.NewLogger(t), Concurrency: 4}), asyncDir)

	assert.Equal(t, syncErr, asyncErr)
	assert.Equal(t, syncFiles, asyncFiles)
}

func TestValidate(t *testing.T) {
	out := []OutputSpec{{ID: "out", Sink: StdoutSink()}}
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no inputs", Config{Outputs: out}, "no inputs"},
		{"no outputs", Config{Inputs: []InputSpec{{ID: "a", Source: StdinSource()}}}, "no outputs"},
		{"missing id", Config{Inputs: []InputSpec{{Source: StdinSource()}}, Outputs: out}, "id is required"},
		{"duplicate input", Config{Inputs: []InputSpec{
			{ID: "a", Source: InlineSource(nil)}, {ID: "a", Source: InlineSource(nil)},
		}, Outputs: out}, `duplicate input id "a"`},
		{"two stdin", Config{Inputs: []InputSpec{
			{ID: "a", Source: StdinSource()}, {ID: "b", Source: StdinSource()},
		}, Outputs: out}, "at most one input may read stdin"},
		{"file without path", Config{Inputs: []InputSpec{{ID: "a", Source: FileSource("")}}, Outputs: out}, "requires a path"},
		{"duplicate output", Config{Inputs: []InputSpec{{ID: "a", Source: StdinSource()}}, Outputs: []OutputSpec{
			{ID: "o", Sink: StdoutSink()}, {ID: "o", Sink: StderrSink()},
		}}, `duplicate output id "o"`},
		{"bad compression", Config{Inputs: []InputSpec{{ID: "a", Source: StdinSource(), Compression: "brotli"}}, Outputs: out}, "brotli"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, ferrors.IsType(err, ferrors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("unknown format is not a config error", func(t *testing.T) {
		cfg := Config{
			Inputs:  []InputSpec{{ID: "a", Source: StdinSource(), Format: formats.CustomID("nope")}},
			Outputs: out,
		}
		assert.NoError(t, cfg.Validate())
	})
}
