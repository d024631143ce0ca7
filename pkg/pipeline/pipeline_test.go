package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/csrconv/pkg/cache"
	"github.com/matzehuels/csrconv/pkg/csr"
	"github.com/matzehuels/csrconv/pkg/errors"
	"github.com/matzehuels/csrconv/pkg/observability"
	"github.com/matzehuels/csrconv/pkg/remap"
)

const triangleCSR = "3\n6\n0\n2\n4\n1\n2\n0\n2\n0\n1\n"

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func ptr[T any](v T) *T { return &v }

func TestValidateAndSetDefaults(t *testing.T) {
	input := writeInput(t, "com-orkut.ungraph.txt", "")

	tests := []struct {
		name     string
		opts     Options
		wantCode errors.Code
	}{
		{"missing input", Options{}, errors.ErrCodeInvalidConfig},
		{"bad name", Options{Input: input, Name: "../x"}, errors.ErrCodeInvalidInput},
		{"unknown format", Options{Input: input, Format: "parquet"}, errors.ErrCodeUnsupportedFormat},
		{"bad mode", Options{Input: input, Mode: "fast"}, errors.ErrCodeInvalidConfig},
		{"negative window", Options{Input: input, WindowSize: -1}, errors.ErrCodeInvalidConfig},
		{"negative budget", Options{Input: input, MemoryBudget: -1}, errors.ErrCodeInvalidConfig},
		{"bad encoding", Options{Input: input, Encoding: "parquet"}, ""},
		{"bad id mode", Options{Input: input, IDMode: "hashed"}, errors.ErrCodeInvalidConfig},
		{"bad delimiter", Options{Input: input, Delimiter: "::"}, errors.ErrCodeInvalidConfig},
		{"negative header", Options{Input: input, HeaderLines: ptr(-1)}, errors.ErrCodeInvalidConfig},
		{"weights on weighted", Options{Input: input, Format: "signed-csv", AddWeights: true}, errors.ErrCodeInvalidConfig},
		{"negative max weight", Options{Input: input, AddWeights: true, MaxWeight: -2}, errors.ErrCodeInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantCode != "" && !errors.Is(err, tt.wantCode) {
				t.Errorf("error code = %s, want %s (%v)", errors.GetCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	opts := Options{Input: "raw/com-orkut.ungraph.txt"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Name != "com-orkut" {
		t.Errorf("Name = %q, want com-orkut", opts.Name)
	}
	if opts.Format != DefaultFormat || opts.Mode != ModeAuto || opts.Encoding != "text" {
		t.Errorf("defaults = %q %q %q", opts.Format, opts.Mode, opts.Encoding)
	}
	if opts.WindowSize != DefaultWindowSize {
		t.Errorf("WindowSize = %d, want %d", opts.WindowSize, DefaultWindowSize)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}
	if got, want := opts.OutputPath(), filepath.Join(".", "unweighted", "com-orkut"); got != want {
		t.Errorf("OutputPath = %q, want %q", got, want)
	}

	// Idempotent
	opts.Format = "nonsense"
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call should be a no-op: %v", err)
	}
}

func TestPresetResolution(t *testing.T) {
	opts := Options{Input: "raw/com-youtube.ungraph.txt", Format: "snap-community", OutputDir: "graphs"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	src := opts.SourceOptions()
	if src.HeaderLines != 4 || src.Delimiter != '\t' || src.Directed || src.Weighted {
		t.Errorf("source options = %+v", src)
	}
	if opts.idMode != remap.ModeSparse || opts.base != 1 {
		t.Errorf("id mode = %s base %d, want sparse base 1", opts.idMode, opts.base)
	}

	over := Options{
		Input:       "raw/twitter.txt",
		Format:      "snap-social",
		Directed:    ptr(false),
		HeaderLines: ptr(2),
		Comment:     ptr("#"),
		Delimiter:   "comma",
		IDMode:      "dense",
		Base:        ptr(int64(1)),
	}
	if err := over.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	src = over.SourceOptions()
	if src.Directed || src.HeaderLines != 2 || src.Comment != "#" || src.Delimiter != ',' {
		t.Errorf("overridden source options = %+v", src)
	}
	if over.idMode != remap.ModeDense || over.base != 1 {
		t.Errorf("id mode = %s base %d, want dense base 1", over.idMode, over.base)
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"whitespace", 0, false},
		{"tab", '\t', false},
		{"TAB", '\t', false},
		{"comma", ',', false},
		{";", ';', false},
		{"|", '|', false},
		{"::", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSelectMode(t *testing.T) {
	opts := Options{Mode: ModeAuto, AutoChunkBytes: 100}
	if got := opts.selectMode(100); got != ModeMemory {
		t.Errorf("selectMode(100) = %s, want memory", got)
	}
	if got := opts.selectMode(101); got != ModeChunked {
		t.Errorf("selectMode(101) = %s, want chunked", got)
	}
	opts.Mode = ModeMemory
	if got := opts.selectMode(1 << 40); got != ModeMemory {
		t.Errorf("explicit mode should win, got %s", got)
	}
}

func TestConversionKeyIgnoresWindow(t *testing.T) {
	a := Options{Input: "raw/g.txt", WindowSize: 10, Mode: ModeChunked}
	b := Options{Input: "raw/g.txt", MemoryBudget: 1 << 20, Mode: ModeMemory}
	for _, o := range []*Options{&a, &b} {
		if err := o.ValidateAndSetDefaults(); err != nil {
			t.Fatal(err)
		}
	}
	if a.ConversionKeyOpts() != b.ConversionKeyOpts() {
		t.Error("window and mode must not change the conversion key")
	}
}

type indexHooks struct {
	observability.NoopConvertHooks
	scanned map[int]int64
}

func (h *indexHooks) OnPassComplete(_ context.Context, _, _ string, pass int, scanned int64, _ time.Duration, _ error) {
	h.scanned[pass] += scanned
}

func TestIndexPassReportsEdges(t *testing.T) {
	hooks := &indexHooks{scanned: map[int]int64{}}
	observability.SetConvertHooks(hooks)
	defer observability.Reset()

	input := writeInput(t, "sparse.txt", "10 20\n20 30\n10 30\n30 40\n")
	_, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{
		Input:     input,
		IDMode:    "sparse",
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := hooks.scanned[0]; got != 4 {
		t.Errorf("pass 0 scanned = %d, want 4", got)
	}
	if got := hooks.scanned[1]; got != 4 {
		t.Errorf("pass 1 scanned = %d, want 4", got)
	}
}

func TestExecuteModesAgree(t *testing.T) {
	input := writeInput(t, "triangle.txt", "0 1\n0 2\n1 2\n")
	runner := NewRunner(nil, nil, nil)

	for _, mode := range []Mode{ModeMemory, ModeChunked} {
		t.Run(string(mode), func(t *testing.T) {
			out := t.TempDir()
			res, err := runner.Execute(context.Background(), Options{
				Input:      input,
				Mode:       mode,
				WindowSize: 1,
				OutputDir:  out,
			})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Mode != mode || res.CacheHit {
				t.Errorf("result = %+v", res)
			}
			if want := filepath.Join(out, "unweighted", "triangle"); res.Output != want {
				t.Errorf("Output = %q, want %q", res.Output, want)
			}
			data, err := os.ReadFile(res.Output)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != triangleCSR {
				t.Errorf("output = %q, want %q", data, triangleCSR)
			}
			if res.Stats.Nodes != 3 || res.Stats.Edges != 6 {
				t.Errorf("stats = %+v", res.Stats)
			}
		})
	}
}

func TestExecuteSignedCSV(t *testing.T) {
	input := writeInput(t, "soc-sign-bitcoinotc.csv", "100,200,5,1289241911\n200,300,-3,1289241942\n")
	out := t.TempDir()

	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{
		Input:     input,
		Format:    "signed-csv",
		Mode:      ModeChunked,
		OutputDir: out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "weighted", "soc-sign-bitcoinotc"); res.Output != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	data, _ := os.ReadFile(res.Output)
	if want := "3\n2\n0\n1\n2\n1 5\n2 -3\n0\n0\n1\n0 5\n1 -3\n"; string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
	// index scan + degree + one window, per side
	if res.Stats.Passes != 1+2+2 {
		t.Errorf("Passes = %d, want 5", res.Stats.Passes)
	}
}

func TestExecuteBinary(t *testing.T) {
	input := writeInput(t, "triangle.txt", "0 1\n0 2\n1 2\n")
	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{
		Input:     input,
		Encoding:  "binary",
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	g, err := csr.ReadFile(res.Output, csr.Binary, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if g.N != 3 || g.M() != 6 {
		t.Errorf("binary graph n=%d m=%d", g.N, g.M())
	}
}

func TestExecuteCache(t *testing.T) {
	ctx := context.Background()
	input := writeInput(t, "triangle.txt", "0 1\n0 2\n1 2\n")
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	opts := Options{Input: input, OutputDir: t.TempDir()}

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Fatal("first run should miss")
	}

	second, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || second.JobID != first.JobID || second.Stats.Edges != 6 {
		t.Errorf("second run = %+v, want hit of job %s", second, first.JobID)
	}

	refreshed := opts
	refreshed.Refresh = true
	third, err := runner.Execute(ctx, refreshed)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHit {
		t.Error("refresh should bypass the cache")
	}

	if err := os.Remove(third.Output); err != nil {
		t.Fatal(err)
	}
	fourth, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheHit {
		t.Error("a missing output should force a rebuild")
	}
	if _, err := os.Stat(fourth.Output); err != nil {
		t.Errorf("output not rebuilt: %v", err)
	}
}

func TestExecuteAddWeights(t *testing.T) {
	input := writeInput(t, "wiki-vote.txt", "0 1\n1 2\n2 0\n0 2\n")
	out := t.TempDir()
	opts := Options{
		Input:      input,
		Directed:   ptr(true),
		AddWeights: true,
		Seed:       7,
		OutputDir:  out,
	}
	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(out, "weighted", "wiki-vote"); res.WeightedOutput != want {
		t.Errorf("WeightedOutput = %q, want %q", res.WeightedOutput, want)
	}

	plain, err := csr.ReadFile(res.Output, csr.Text, true, false)
	if err != nil {
		t.Fatal(err)
	}
	weighted, err := csr.ReadFile(res.WeightedOutput, csr.Text, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := csr.Validate(weighted); err != nil {
		t.Errorf("weighted output invalid: %v", err)
	}
	for i, off := range plain.Forward.Offsets {
		if weighted.Forward.Offsets[i] != off {
			t.Fatalf("offsets differ at %d", i)
		}
	}
	for _, r := range weighted.Forward.Records {
		if r.Weight < 0 || r.Weight > csr.DefaultMaxWeight {
			t.Errorf("weight %d outside [0, %d]", r.Weight, csr.DefaultMaxWeight)
		}
	}
}

func TestExecuteMalformed(t *testing.T) {
	input := writeInput(t, "broken.txt", "0 1\n1 two\n")
	out := t.TempDir()

	for _, mode := range []Mode{ModeMemory, ModeChunked} {
		_, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{
			Input:     input,
			Mode:      mode,
			IDMode:    "sparse",
			OutputDir: out,
		})
		if !errors.Is(err, errors.ErrCodeMalformedInput) {
			t.Fatalf("%s: error = %v, want MALFORMED_INPUT", mode, err)
		}
		var stage *errors.StageError
		if !errors.As(err, &stage) || stage.Pass != 0 {
			t.Errorf("%s: want a pass 0 StageError, got %v", mode, err)
		}
		var bad *errors.MalformedInputError
		if !errors.As(err, &bad) || bad.LineNo != 2 || bad.Line != "1 two" {
			t.Errorf("%s: error should name the raw line: %v", mode, err)
		}
	}

	entries, _ := os.ReadDir(filepath.Join(out, "unweighted"))
	if len(entries) != 0 {
		t.Errorf("failed jobs left files behind: %v", entries)
	}
}

func TestExecuteCancelled(t *testing.T) {
	input := writeInput(t, "triangle.txt", "0 1\n0 2\n1 2\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(nil, nil, nil).Execute(ctx, Options{Input: input, OutputDir: t.TempDir()})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context canceled", err)
	}
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeInput(t, "a.txt", "0 1\n0 2\n1 2\n")
	other := writeInput(t, "b.txt", "0 1\n")
	broken := writeInput(t, "c.txt", "x y\n")

	jobs := []Options{
		{Input: good, OutputDir: dir},
		{Input: broken, OutputDir: dir},
		{Input: other, OutputDir: dir, Mode: ModeChunked},
	}
	results, err := NewRunner(nil, nil, nil).RunBatch(context.Background(), jobs, 2)
	if err == nil {
		t.Fatal("RunBatch should report the broken job")
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("independent jobs failed: %v, %v", results[0].Err, results[2].Err)
	}
	if results[1].Err == nil {
		t.Error("broken job should fail")
	}

	data, err := os.ReadFile(filepath.Join(dir, "unweighted", "a"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte(triangleCSR)) {
		t.Errorf("a = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "unweighted", "b")); err != nil {
		t.Errorf("b missing: %v", err)
	}
}
