// Package csr defines the compressed-sparse-row graph file and its codecs.
//
// # Layout
//
// A CSR file holds, in order:
//
//  1. n, the node count
//  2. m, the forward record count (undirected edges count twice)
//  3. n forward offsets: offsets[i] is the flat position of node i's first record
//  4. m forward records
//  5. directed graphs only: n reverse offsets followed by m reverse records
//
// offsets[n] is implicit and equals m. A record is a bare neighbor index for
// unweighted graphs and a (neighbor, weight) pair for weighted graphs; weights
// are signed. Node i's neighbors are the offsets[i+1]-offsets[i] records
// starting at offsets[i].
//
// # Encodings
//
// [Text] writes one value per line and a weighted record as "neighbor weight".
// [Binary] writes the same sequence little-endian: uint64 for n, m and offsets,
// uint32 for neighbors and int64 for weights. Neither encoding records whether
// the graph is directed or weighted; readers are told.
//
// # Usage
//
//	g := csr.Graph{N: 3, Forward: csr.FromLists(lists)}
//	err := csr.Write(csr.NewEncoder(w, csr.Text, false), &g)
//
//	g, err := csr.ReadFile("out/unweighted/com-orkut", csr.Text, false, false)
package csr

import (
	"slices"
)

// Record is one entry of a neighbor list.
type Record struct {
	Neighbor uint32
	Weight   int64
}

// Adjacency is one side (forward or reverse) of a CSR graph.
type Adjacency struct {
	Offsets []int64 // len n; offsets[n] is implicit
	Records []Record
}

// FromLists flattens per-node neighbor lists into an Adjacency.
func FromLists(lists [][]Record) Adjacency {
	a := Adjacency{Offsets: make([]int64, len(lists))}
	var m int64
	for i, l := range lists {
		a.Offsets[i] = m
		m += int64(len(l))
	}
	a.Records = make([]Record, 0, m)
	for _, l := range lists {
		a.Records = append(a.Records, l...)
	}
	return a
}

// end returns the flat position one past node i's last record.
func (a Adjacency) end(i int) int64 {
	if i+1 < len(a.Offsets) {
		return a.Offsets[i+1]
	}
	return int64(len(a.Records))
}

// Neighbors returns node i's records. The slice aliases the adjacency.
func (a Adjacency) Neighbors(i int) []Record {
	return a.Records[a.Offsets[i]:a.end(i)]
}

// Degree returns the number of records owned by node i.
func (a Adjacency) Degree(i int) int64 {
	return a.end(i) - a.Offsets[i]
}

// Transpose returns the adjacency with every record (u -> v) moved to v's
// list as (v -> u). Each reverse list is ordered by owner, and parallel records
// keep their forward order.
func Transpose(a Adjacency) Adjacency {
	n := len(a.Offsets)
	rev := Adjacency{Offsets: make([]int64, n), Records: make([]Record, len(a.Records))}
	deg := make([]int64, n)
	for _, r := range a.Records {
		deg[r.Neighbor]++
	}
	var off int64
	for v := range deg {
		rev.Offsets[v] = off
		off += deg[v]
	}
	next := slices.Clone(rev.Offsets)
	for u := range n {
		for _, r := range a.Neighbors(u) {
			rev.Records[next[r.Neighbor]] = Record{Neighbor: uint32(u), Weight: r.Weight}
			next[r.Neighbor]++
		}
	}
	return rev
}

// Graph is a fully materialized CSR graph.
type Graph struct {
	N        int
	Directed bool
	Weighted bool
	Forward  Adjacency
	Reverse  Adjacency // empty unless Directed
}

// M returns the forward record count.
func (g *Graph) M() int64 { return int64(len(g.Forward.Records)) }

// Equal reports whether two graphs serialize to the same bytes.
func (g *Graph) Equal(o *Graph) bool {
	return g.N == o.N && g.Directed == o.Directed && g.Weighted == o.Weighted &&
		adjEqual(g.Forward, o.Forward) && adjEqual(g.Reverse, o.Reverse)
}

func adjEqual(a, b Adjacency) bool {
	return slices.Equal(a.Offsets, b.Offsets) && slices.Equal(a.Records, b.Records)
}
