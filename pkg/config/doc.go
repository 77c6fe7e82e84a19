// Package config loads pipeline configuration documents for formatflow.
//
// A document declares named inputs and outputs, the error policy and the
// auto-detection candidate order:
//
//	inputs:
//	  - id: users
//	    kind: file
//	    path: ${DATA_DIR}/users.csv
//	    format: csv
//	  - id: piped
//	    kind: stdin
//	outputs:
//	  - id: report
//	    kind: file
//	    path: out/report.yaml
//	    file_exists_policy: append
//	  - id: console
//	    kind: stdout
//	    format: json
//	error_policy: accumulate
//	format_order: [json, yaml, csv]
//
// # Loading
//
// Load reads YAML, JSON or TOML, chosen by the file extension. ${VAR} and
// ${VAR:-default} references are replaced with environment values before the
// document is parsed, and top-level scalars can be overridden with
// FORMATFLOW_-prefixed variables such as FORMATFLOW_ERROR_POLICY.
//
//	doc, err := config.Load("pipeline.yaml")
//	cfg, err := doc.ToPipeline()
//
// # Kinds
//
// Inputs use kind file (with path), stdin or inline (with content). Outputs
// use kind file (with path), stdout or stderr. An input without format is
// auto-detected; an output without format follows its file extension and
// falls back to json. Unknown format names are reported when the run
// resolves them, not here.
package config
