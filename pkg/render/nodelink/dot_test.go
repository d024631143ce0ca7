package nodelink

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
)

func TestToDOTDirected(t *testing.T) {
	fwd := csr.FromLists([][]csr.Record{
		{{Neighbor: 1, Weight: 5}},
		{{Neighbor: 2, Weight: -3}},
		nil,
	})
	g := &csr.Graph{N: 3, Directed: true, Weighted: true, Forward: fwd, Reverse: csr.Transpose(fwd)}

	dot, err := ToDOT(g, Options{ShowWeights: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"digraph G {", `n0 [label="0"];`, `n0 -> n1 [label="5"];`, `n1 -> n2 [label="-3"];`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Count(dot, "->") != 2 {
		t.Errorf("DOT should draw 2 edges:\n%s", dot)
	}
}

func TestToDOTUndirected(t *testing.T) {
	// Triangle plus a self-loop on node 2, stored symmetrically.
	g := &csr.Graph{N: 3, Forward: csr.FromLists([][]csr.Record{
		{{Neighbor: 1}, {Neighbor: 2}},
		{{Neighbor: 0}, {Neighbor: 2}},
		{{Neighbor: 0}, {Neighbor: 1}, {Neighbor: 2}, {Neighbor: 2}},
	})}

	dot, err := ToDOT(g, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dot, "graph G {") {
		t.Errorf("undirected graph should use graph:\n%s", dot)
	}
	if got := strings.Count(dot, "--"); got != 4 {
		t.Errorf("drew %d edges, want 4:\n%s", got, dot)
	}
	if !strings.Contains(dot, "n2 -- n2;") {
		t.Errorf("self-loop missing:\n%s", dot)
	}
}

func TestToDOTLabels(t *testing.T) {
	raw := []int64{12, 900}
	g := &csr.Graph{N: 2, Forward: csr.FromLists([][]csr.Record{{{Neighbor: 1}}, {{Neighbor: 0}}})}
	dot, err := ToDOT(g, Options{Labels: func(i int) string { return fmt.Sprint(raw[i]) }})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `n1 [label="900"];`) {
		t.Errorf("custom label missing:\n%s", dot)
	}
}

func TestToDOTTooLarge(t *testing.T) {
	g := &csr.Graph{N: 11, Forward: csr.FromLists(make([][]csr.Record, 11))}
	_, err := ToDOT(g, Options{MaxNodes: 10})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestRenderSVG(t *testing.T) {
	g := &csr.Graph{N: 2, Forward: csr.FromLists([][]csr.Record{{{Neighbor: 1}}, {{Neighbor: 0}}})}
	dot, err := ToDOT(g, Options{})
	if err != nil {
		t.Fatal(err)
	}
	svg, err := RenderSVG(dot)
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Errorf("output is not SVG: %.100s", svg)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 62.00 116.00" width="62" height="116"`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg></svg>")); string(got) != "<svg></svg>" {
		t.Errorf("svg without viewBox should be unchanged, got %s", got)
	}
}
