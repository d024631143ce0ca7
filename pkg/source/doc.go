// Package source normalizes heterogeneous raw graph datasets into a uniform
// stream of edges.
//
// # Overview
//
// Every dataset format is exposed through the [Source] capability interface.
// A Source declares whether the graph is directed and weighted, and produces
// its edges lazily through [Source.Edges]. Each call to Edges reopens the
// underlying file and skips the same header, so the stream can be re-read any
// number of times and always yields the same edges in the same order. The
// chunked converter in pkg/convert depends on this: it re-scans the input once
// per id window.
//
// # Formats
//
//   - [EdgeList]: whitespace, tab or custom-delimited two-column edge lists,
//     with an optional third weight column
//   - [CSV]: comma separated from,to,weight[,extra...] rows
//   - [Ligra]: Ligra AdjacencyGraph / WeightedAdjacencyGraph files
//
// # Presets
//
// Known public datasets map to a [Preset], which bundles a format with its
// header size, delimiter and id layout:
//
//	p, err := source.LookupPreset("snap-community")
//	src, err := p.Open(source.Options{Path: "com-orkut.ungraph.txt"})
//
// # Errors
//
// A row with the wrong number of columns or a non-numeric id or weight stops
// the stream with a *errors.MalformedInputError carrying the path, the line
// number and the raw line. Rows are never skipped silently.
package source
