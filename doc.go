// Package formatflow converts structured data between JSON, YAML, TOML, INI,
// CSV, XML and plaintext through a common value model.
//
// Every input is decoded into value.Value documents, the documents of all
// inputs are collected in declaration order, and every output receives the
// whole collection encoded in its own format. Inputs read files, standard
// input or inline content; outputs write files, standard output, standard
// error or in-memory buffers.
//
// # Architecture
//
// A run moves each input through Resolve, Open, Read and Parse and each output
// through Resolve, Encode, Open and Write. The steps are shared by two
// schedulers: a sequential one and a concurrent one built on errgroup. Both
// fold per-unit outcomes in declaration order, so they report the same values
// and the same errors for the same configuration.
//
// Two error policies are available:
//
//   - fast_fail stops at the first failing unit and reports it alone
//   - accumulate attempts every unit and reports every failure together
//
// # Quick Start
//
// Convert a CSV file into YAML and JSON:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/formatflow/internal/pipeline"
//	    "github.com/ajitpratap0/formatflow/pkg/formats"
//	)
//
//	executor := pipeline.NewSync(pipeline.Options{})
//	report, err := executor.Run(context.Background(), &pipeline.Config{
//	    Inputs:  []pipeline.InputSpec{{ID: "users", Source: pipeline.FileSource("users.csv")}},
//	    Outputs: []pipeline.OutputSpec{
//	        {ID: "yaml", Sink: pipeline.FileSink("users.yaml")},
//	        {ID: "console", Sink: pipeline.StdoutSink(), Format: formats.JSON},
//	    },
//	})
//
// # Key Packages
//
//	pkg/value        - Ordered, format-neutral document model
//	pkg/formats      - Codec registry, built-in codecs and auto-detection
//	internal/pipeline - Executors, records stream and token-driven helpers
//	pkg/config       - YAML, JSON and TOML pipeline documents
//	pkg/compression  - gzip, zstd, snappy, s2, lz4 and deflate streams
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing
//
// # Command Line
//
// The formatflow binary wraps the same engine:
//
//	formatflow convert users.csv users.yaml
//	formatflow convert --multi-in all.json a.toml b.ini -
//	formatflow records auto events.jsonl settings.yaml
//	formatflow flags -i '{"a":1}' -i data.csv -o - -o out.toml
//	formatflow run pipeline.yaml --async --metrics
//
// Configuration documents support ${VAR_NAME} and ${VAR_NAME:-default}
// substitution.
package formatflow
