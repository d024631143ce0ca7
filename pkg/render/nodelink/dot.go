package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
)

// DefaultMaxNodes is the largest graph ToDOT accepts unless told otherwise.
const DefaultMaxNodes = 500

// Options configures node-link diagram generation.
type Options struct {
	// ShowWeights labels edges of weighted graphs with their weight.
	ShowWeights bool

	// MaxNodes caps the graph size; 0 means DefaultMaxNodes.
	MaxNodes int

	// Labels optionally names node i; nil labels nodes by index.
	Labels func(i int) string
}

// ToDOT converts a CSR graph to Graphviz DOT source.
func ToDOT(g *csr.Graph, opts Options) (string, error) {
	limit := opts.MaxNodes
	if limit == 0 {
		limit = DefaultMaxNodes
	}
	if g.N > limit {
		return "", errors.New(errors.ErrCodeInvalidInput,
			"graph has %d nodes, more than the %d that can be drawn", g.N, limit)
	}

	kind, arrow := "graph", "--"
	if g.Directed {
		kind, arrow = "digraph", "->"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s G {\n", kind)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=14];\n")
	buf.WriteString("\n")

	for i := 0; i < g.N; i++ {
		label := strconv.Itoa(i)
		if opts.Labels != nil {
			label = opts.Labels(i)
		}
		fmt.Fprintf(&buf, "  n%d [label=%q];\n", i, label)
	}

	buf.WriteString("\n")
	for u := 0; u < g.N; u++ {
		loops := 0
		for _, r := range g.Forward.Neighbors(u) {
			v := int(r.Neighbor)
			if !g.Directed {
				// Each undirected edge is stored on both endpoints, and a
				// self-loop twice on its node.
				if v < u {
					continue
				}
				if v == u {
					loops++
					if loops%2 == 0 {
						continue
					}
				}
			}
			fmt.Fprintf(&buf, "  n%d %s n%d", u, arrow, v)
			if g.Weighted && opts.ShowWeights {
				fmt.Fprintf(&buf, " [label=\"%d\"]", r.Weight)
			}
			buf.WriteString(";\n")
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	svg, err := render(dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(svg), nil
}

// RenderPNG renders DOT source to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return render(dot, graphviz.PNG)
}

func render(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg tag with one sized by
// the viewBox, so the image scales in browsers.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
