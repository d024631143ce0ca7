package convert

import (
	"bytes"
	"context"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/observability"
	"github.com/matzehuels/csrconv/pkg/remap"
	"github.com/matzehuels/csrconv/pkg/source"
)

type converter func(context.Context, source.Source, remap.Mapper, csr.Encoder, Options) (*Stats, error)

func run(t *testing.T, conv converter, src source.Source, enc csr.Encoding, opts Options) []byte {
	t.Helper()
	m, err := remap.Build(context.Background(), src, remap.ModeDense, 0)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = conv(context.Background(), src, m, csr.NewEncoder(&buf, enc, src.Weighted()), opts)
	require.NoError(t, err)
	return buf.Bytes()
}

func edges(pairs ...[2]int64) []source.RawEdge {
	out := make([]source.RawEdge, len(pairs))
	for i, p := range pairs {
		out[i] = source.RawEdge{From: p[0], To: p[1]}
	}
	return out
}

// randomEdges returns m edges over n nodes in no particular order, with
// parallel edges and self-loops, covering every id so the dense map has n
// nodes.
func randomEdges(seed uint64, n, m int) []source.RawEdge {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]source.RawEdge, 0, m+1)
	for range m {
		out = append(out, source.RawEdge{
			From:   rng.Int64N(int64(n)),
			To:     rng.Int64N(int64(n)),
			Weight: rng.Int64N(21) - 10,
		})
	}
	out = append(out, source.RawEdge{From: int64(n - 1), To: int64(n - 1), Weight: 1})
	if m > 3 {
		out = append(out, out[0], out[1])
	}
	return out
}

func TestUndirectedTriangle(t *testing.T) {
	src := source.NewMemory("triangle", false, false, edges([2]int64{0, 1}, [2]int64{0, 2}, [2]int64{1, 2}))
	want := "3\n6\n0\n2\n4\n1\n2\n0\n2\n0\n1\n"

	assert.Equal(t, want, string(run(t, Memory, src, csr.Text, Options{})))
	for w := 1; w <= 3; w++ {
		assert.Equal(t, want, string(run(t, Chunked, src, csr.Text, Options{WindowSize: w})), "W=%d", w)
	}
}

func TestDirectedWeighted(t *testing.T) {
	src := source.NewMemory("signed", true, true, []source.RawEdge{
		{From: 0, To: 1, Weight: 5},
		{From: 1, To: 2, Weight: -3},
	})
	want := "3\n2\n0\n1\n2\n1 5\n2 -3\n0\n0\n1\n0 5\n1 -3\n"

	assert.Equal(t, want, string(run(t, Memory, src, csr.Text, Options{})))
	for w := 1; w <= 3; w++ {
		assert.Equal(t, want, string(run(t, Chunked, src, csr.Text, Options{WindowSize: w})), "W=%d", w)
	}
}

func TestChunkedMatchesMemory(t *testing.T) {
	const n = 23
	for _, directed := range []bool{false, true} {
		for _, weighted := range []bool{false, true} {
			src := source.NewMemory("random", directed, weighted, randomEdges(uint64(n), n, 120))
			for _, enc := range []csr.Encoding{csr.Text, csr.Binary} {
				want := run(t, Memory, src, enc, Options{})
				for w := 1; w <= n; w++ {
					got := run(t, Chunked, src, enc, Options{WindowSize: w})
					require.Equal(t, want, got, "directed=%v weighted=%v enc=%s W=%d", directed, weighted, enc, w)
				}
				got := run(t, Chunked, src, enc, Options{})
				require.Equal(t, want, got, "single window")
			}
		}
	}
}

func TestChunkedMemoryBudget(t *testing.T) {
	src := source.NewMemory("random", true, true, randomEdges(7, 40, 300))
	want := run(t, Memory, src, csr.Text, Options{})
	for _, budget := range []int64{1, 64, 512, 1 << 20} {
		assert.Equal(t, want, run(t, Chunked, src, csr.Text, Options{MemoryBudget: budget}), "budget=%d", budget)
	}
}

func TestChunkedWindowInvariance(t *testing.T) {
	src := source.NewMemory("random", true, false, randomEdges(3, 10, 50))
	w1 := run(t, Chunked, src, csr.Text, Options{WindowSize: 1})
	w5 := run(t, Chunked, src, csr.Text, Options{WindowSize: 5})
	wn := run(t, Chunked, src, csr.Text, Options{WindowSize: 10})
	assert.Equal(t, w1, w5)
	assert.Equal(t, w1, wn)
}

func TestReversalAndSymmetry(t *testing.T) {
	for _, directed := range []bool{false, true} {
		raw := randomEdges(11, 15, 80)
		src := source.NewMemory("random", directed, true, raw)
		data := run(t, Chunked, src, csr.Binary, Options{WindowSize: 4})

		g, err := csr.Read(csr.NewDecoder(bytes.NewReader(data), csr.Binary, true), directed, true)
		require.NoError(t, err)
		require.NoError(t, csr.Validate(g))

		// Degree consistency against the source.
		deg := make([]int64, g.N)
		for _, e := range raw {
			deg[e.From]++
			if !directed {
				deg[e.To]++
			}
		}
		for i := range g.N {
			assert.Equal(t, deg[i], g.Forward.Degree(i), "node %d", i)
		}
		if directed {
			assert.Equal(t, g.M(), int64(len(g.Reverse.Records)))
		} else {
			assert.Equal(t, 2*int64(len(raw)), g.M())
		}
	}
}

func TestRoundTrip(t *testing.T) {
	src := source.NewMemory("random", true, true, randomEdges(5, 12, 60))
	m, err := remap.Build(context.Background(), src, remap.ModeDense, 0)
	require.NoError(t, err)
	want, err := Build(context.Background(), src, m, Options{})
	require.NoError(t, err)

	data := run(t, Chunked, src, csr.Text, Options{WindowSize: 5})
	got, err := csr.Read(csr.NewDecoder(bytes.NewReader(data), csr.Text, true), true, true)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestSparseIDs(t *testing.T) {
	src := source.NewMemory("accounts", true, false, edges(
		[2]int64{900, 12}, [2]int64{12, 7000}, [2]int64{7000, 900}, [2]int64{12, 900},
	))
	m, err := remap.Build(context.Background(), src, remap.ModeSparse, 0)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())

	var mem, chk bytes.Buffer
	_, err = Memory(context.Background(), src, m, csr.NewEncoder(&mem, csr.Text, false), Options{})
	require.NoError(t, err)
	stats, err := Chunked(context.Background(), src, m, csr.NewEncoder(&chk, csr.Text, false), Options{WindowSize: 1})
	require.NoError(t, err)
	assert.Equal(t, mem.String(), chk.String())

	// 12 -> 0, 900 -> 1, 7000 -> 2
	assert.Equal(t, "3\n4\n0\n2\n3\n2\n1\n0\n1\n"+"0\n1\n3\n"+"1\n0\n2\n0\n", chk.String())
	assert.Equal(t, int64(3), stats.Nodes)
	assert.Equal(t, int64(4), stats.Edges)
	assert.Equal(t, 2*(1+3), stats.Passes)
	assert.Equal(t, 6, stats.Windows)
	assert.Equal(t, int64(chk.Len()), stats.Bytes)
}

func TestEmptyGraph(t *testing.T) {
	src := source.NewMemory("empty", true, false, nil)
	assert.Equal(t, "0\n0\n", string(run(t, Chunked, src, csr.Text, Options{WindowSize: 2})))
	assert.Equal(t, "0\n0\n", string(run(t, Memory, src, csr.Text, Options{})))
}

func TestMalformedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.txt")
	require.NoError(t, os.WriteFile(path, []byte("0 1\n1 2\n2 x\n"), 0o644))
	src := source.NewEdgeList(source.Options{Path: path, Name: "broken"})

	m := &remap.Dense{N: 3}
	for name, conv := range map[string]converter{"memory": Memory, "chunked": Chunked} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := conv(context.Background(), src, m, csr.NewEncoder(&buf, csr.Text, false), Options{WindowSize: 1})
			require.Error(t, err)

			var stage *errors.StageError
			require.True(t, errors.As(err, &stage), "error = %v", err)
			assert.Equal(t, "broken", stage.Dataset)
			assert.Equal(t, 1, stage.Pass)

			var bad *errors.MalformedInputError
			require.True(t, errors.As(err, &bad))
			assert.Equal(t, 3, bad.LineNo)
			assert.Equal(t, "2 x", bad.Line)
			assert.True(t, errors.Is(err, errors.ErrCodeMalformedInput))
		})
	}
}

func TestUnmappedID(t *testing.T) {
	src := source.NewMemory("g", false, false, edges([2]int64{0, 5}))
	var buf bytes.Buffer
	_, err := Chunked(context.Background(), src, &remap.Dense{N: 3}, csr.NewEncoder(&buf, csr.Text, false), Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeMalformedInput), "error = %v", err)
}

// shifting yields a different edge set on every pass.
type shifting struct {
	mu    sync.Mutex
	calls int
}

func (s *shifting) Name() string   { return "shifting" }
func (s *shifting) Directed() bool { return true }
func (s *shifting) Weighted() bool { return false }

func (s *shifting) Edges(context.Context) iter.Seq2[source.RawEdge, error] {
	s.mu.Lock()
	s.calls++
	extra := s.calls > 1
	s.mu.Unlock()
	return func(yield func(source.RawEdge, error) bool) {
		if !yield(source.RawEdge{From: 0, To: 1}, nil) {
			return
		}
		if extra {
			yield(source.RawEdge{From: 0, To: 2}, nil)
		}
	}
}

func TestInconsistentDegree(t *testing.T) {
	var buf bytes.Buffer
	_, err := Chunked(context.Background(), &shifting{}, &remap.Dense{N: 3}, csr.NewEncoder(&buf, csr.Text, false), Options{WindowSize: 1})

	var bad *errors.InconsistentDegreeError
	require.True(t, errors.As(err, &bad), "error = %v", err)
	assert.Equal(t, SideForward, bad.Side)
	assert.Equal(t, int64(0), bad.Node)
	assert.Equal(t, int64(1), bad.Want)
	assert.Equal(t, int64(2), bad.Got)
	assert.True(t, errors.Is(err, errors.ErrCodeInconsistentDegree))

	var stage *errors.StageError
	require.True(t, errors.As(err, &stage))
	assert.Equal(t, 2, stage.Pass)
	assert.Equal(t, int64(0), stage.Lo)
	assert.Equal(t, int64(1), stage.Hi)
}

// fullDisk accepts limit bytes, then fails every write.
type fullDisk struct{ limit int }

func (d *fullDisk) Write(p []byte) (int, error) {
	if len(p) > d.limit {
		n := d.limit
		d.limit = 0
		return n, syscall.ENOSPC
	}
	d.limit -= len(p)
	return len(p), nil
}

func TestWriteFailureCarriesStage(t *testing.T) {
	small := source.NewMemory("tri", false, false, edges([2]int64{0, 1}, [2]int64{0, 2}, [2]int64{1, 2}))
	large := source.NewMemory("big", true, false, randomEdges(3, 2000, 40000))

	tests := []struct {
		name     string
		src      source.Source
		conv     converter
		opts     Options
		wantPass int // 0 means any window pass
	}{
		// Everything fits in the encoder buffer; the failure surfaces on flush.
		{"chunked flush", small, Chunked, Options{WindowSize: 1}, 4},
		{"chunked window", large, Chunked, Options{WindowSize: 10}, 0},
		{"memory", small, Memory, Options{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := remap.Build(context.Background(), tt.src, remap.ModeDense, 0)
			require.NoError(t, err)
			enc := csr.NewEncoder(&fullDisk{limit: 40}, csr.Text, false)
			_, err = tt.conv(context.Background(), tt.src, m, enc, tt.opts)

			var stage *errors.StageError
			require.True(t, errors.As(err, &stage), "error = %v", err)
			assert.Equal(t, tt.src.Name(), stage.Dataset)
			assert.Equal(t, SideForward, stage.Side)
			if tt.wantPass > 0 {
				assert.Equal(t, tt.wantPass, stage.Pass)
			} else {
				assert.Greater(t, stage.Pass, 1)
				assert.Greater(t, stage.Hi, stage.Lo)
			}
			assert.True(t, errors.Is(err, errors.ErrCodeIO), "error = %v", err)
			assert.ErrorIs(t, err, syscall.ENOSPC)
		})
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := source.NewMemory("g", false, false, edges([2]int64{0, 1}))
	var buf bytes.Buffer
	_, err := Chunked(ctx, src, &remap.Dense{N: 2}, csr.NewEncoder(&buf, csr.Text, false), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlanWindows(t *testing.T) {
	deg := []int64{4, 0, 1, 10, 2}
	tests := []struct {
		name   string
		size   int
		budget int64
		want   []window
	}{
		{"single", 0, 0, []window{{0, 5}}},
		{"width 1", 1, 0, []window{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}},
		{"width 2", 2, 0, []window{{0, 2}, {2, 4}, {4, 5}}},
		{"width beyond n", 9, 0, []window{{0, 5}}},
		// costs with 4-byte records: 24, 8, 12, 48, 16
		{"budget", 0, 44, []window{{0, 3}, {3, 4}, {4, 5}}},
		{"tiny budget", 0, 1, []window{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planWindows(deg, tt.size, tt.budget, 4))
		})
	}
	assert.Nil(t, planWindows(nil, 3, 0, 4))
}

type recordingHooks struct {
	observability.NoopConvertHooks
	mu     sync.Mutex
	passes []int
}

func (h *recordingHooks) OnPassComplete(_ context.Context, _, side string, pass int, _ int64, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if side == SideReverse {
		pass = -pass
	}
	h.passes = append(h.passes, pass)
}

func TestPassHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetConvertHooks(hooks)
	defer observability.Reset()

	src := source.NewMemory("g", true, false, edges([2]int64{0, 1}, [2]int64{1, 2}))
	run(t, Chunked, src, csr.Text, Options{WindowSize: 2})
	assert.Equal(t, []int{1, 2, 3, -1, -2, -3}, hooks.passes)
}
