// Package pkg provides the core libraries for csrconv graph conversion.
//
// # Overview
//
// csrconv turns raw edge-list datasets (SNAP social and community graphs,
// signed trust networks, Ligra adjacency files) into Compressed Sparse Row
// files. Graphs larger than memory are converted in id windows: the input is
// re-read once per window, so only one window's records are buffered at a
// time. The pkg directory is organized into three areas:
//
//  1. Domain logic ([source], [remap], [csr], [convert])
//  2. Orchestration ([pipeline], [config])
//  3. Infrastructure ([cache], [observability], [metrics], [errors])
//
// # Architecture
//
// The data flow of one conversion job:
//
//	raw dataset file
//	       ↓
//	  [source] adapter (restartable edge stream)
//	       ↓
//	  [remap] index scan (pass 0, sparse or dense ids)
//	       ↓
//	  [convert] degree pass (pass 1) + window passes (2..k)
//	       ↓
//	  [csr] encoder → <output>/unweighted/<name>.tmp-<uuid> → rename
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/csrconv/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Input:     "com-orkut.ungraph.txt",
//	    Format:    "snap-community",
//	    OutputDir: "graphs",
//	})
//	// res.Output == "graphs/unweighted/com-orkut"
//
// # Main Packages
//
// [source] - Format adapters behind one Source interface. Each call to Edges
// reopens the file, so the chunked converter can re-scan it freely. Presets
// bundle the header, delimiter and id conventions of known dataset families.
//
// [remap] - Raw id to dense index mapping. Dense ids are offset by a base;
// sparse ids are ranked in ascending order through an ordered set.
//
// [csr] - The CSR file format: text and binary codecs, in-memory graphs,
// validation, transposition, random weights, and atomic file output.
//
// [convert] - The in-memory builder and the chunked converter. Both produce
// byte-identical output for the same input.
//
// [pipeline] - Job options, defaults and validation, the Runner that ties
// caching, hooks and logging around a conversion, and batch execution.
//
// [config] - TOML dataset catalogues loaded into pipeline options.
//
// [render/nodelink] - Graphviz drawings of small CSR graphs.
//
// # Testing
//
//	go test ./pkg/...                # All tests
//	go test ./pkg/convert/...        # Specific package
//	go test -run Example ./pkg/...   # Examples only
//
// Redis cache tests run only when CSRCONV_REDIS_ADDR is set.
//
// [source]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/source
// [remap]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/remap
// [csr]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/csr
// [convert]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/convert
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/pipeline
// [config]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/observability
// [metrics]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/metrics
// [errors]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/errors
// [render/nodelink]: https://pkg.go.dev/github.com/matzehuels/csrconv/pkg/render/nodelink
package pkg
