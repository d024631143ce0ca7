// Package nodelink draws small CSR graphs as node-link diagrams.
//
// Converted graphs are usually far too large to look at, but the small test
// fixtures and sampled subgraphs are easier to check by eye than as columns
// of offsets. [ToDOT] refuses graphs above a node limit.
//
// # Usage
//
//	g, err := csr.ReadFile(path, csr.Text, true, false)
//	dot, err := nodelink.ToDOT(g, nodelink.Options{ShowWeights: true})
//	svg, err := nodelink.RenderSVG(dot)
//
// Directed graphs become a DOT digraph drawn from the forward side only; the
// reverse side carries the same edges. Undirected graphs become a DOT graph
// with each edge drawn once.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz], which runs Graphviz
// in-process, for both SVG and PNG output.
package nodelink
