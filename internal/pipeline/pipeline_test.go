package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/gstgraph/internal/cache"
	"github.com/ppiankov/gstgraph/internal/ingest"
	"github.com/ppiankov/gstgraph/internal/model"
)

const (
	idA = "27AAAAA0000A1Z5"
	idB = "29BBBBB1111B1Z6"
	idC = "07CCCCC2222C1Z7"
)

func table(name string, header []string, rows ...[]string) *ingest.RawTable {
	return &ingest.RawTable{Name: name, Header: header, Rows: rows}
}

// ringDataset is A -> B -> C -> A, ₹1,00,000 each, filed in GSTR-1 only
func ringDataset() *ingest.RawDataset {
	raw := ingest.NewRawDataset()
	raw.Add(table(ingest.TableEntities, []string{"gstin", "legal_name", "state_code", "status"},
		[]string{idA, "Alpha Traders", "27", "Active"},
		[]string{idB, "Beta Metals", "29", "Active"},
		[]string{idC, "Gamma Exports", "07", "Active"},
	))
	raw.Add(table(ingest.TableOutward, []string{"invoice_id", "supplier_gstin", "receiver_gstin", "total_value", "tax_amount", "invoice_date"},
		[]string{"INV-1", idA, idB, "100000", "18000", "2024-04-01"},
		[]string{"INV-2", idB, idC, "100000", "18000", "2024-04-02"},
		[]string{"INV-3", idC, idA, "100000", "18000", "2024-04-03"},
	))
	raw.Add(table(ingest.TableInward, []string{"invoice_id", "supplier_gstin", "receiver_gstin", "total_value", "itc_available"}))
	raw.Add(table(ingest.TableSummaries, []string{"gstin", "return_period", "total_sales_declared", "itc_claimed", "tax_paid_cash"}))
	return raw
}

// testSource serves a swappable raw dataset and can hold a load open
type testSource struct {
	mu      sync.Mutex
	raw     *ingest.RawDataset
	err     error
	loads   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
}

func newTestSource(raw *ingest.RawDataset) *testSource {
	return &testSource{raw: raw}
}

func (s *testSource) set(raw *ingest.RawDataset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw, s.err = raw, err
}

func (s *testSource) Load(ctx context.Context) (*ingest.RawDataset, error) {
	s.loads.Add(1)
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	raw, err := s.raw, s.err
	s.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		<-gate
	}
	return raw, err
}

func newEngine(t *testing.T, src ingest.Source) *Engine {
	t.Helper()
	cfg := model.DefaultConfig()
	p, err := NewPipeline(cfg, src)
	require.NoError(t, err)
	return NewEngine(p)
}

func TestEngine_CircularRingScenario(t *testing.T) {
	engine := newEngine(t, newTestSource(ringDataset()))

	snap, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, engine.Current())
	assert.Equal(t, uint64(1), snap.Version)

	assert.Equal(t, 1, snap.Patterns.Summary.ByType[model.PatternCircular])
	var circular *model.FraudPattern
	for i := range snap.Patterns.Patterns {
		if snap.Patterns.Patterns[i].Type == model.PatternCircular {
			circular = &snap.Patterns.Patterns[i]
		}
	}
	require.NotNil(t, circular)
	assert.Equal(t, []string{idC, idA, idB}, circular.Entities)
	assert.Equal(t, 300000.0, circular.Circular.TotalValue)

	require.Len(t, snap.Reconciliation.Mismatches, 3)
	for _, m := range snap.Reconciliation.Mismatches {
		assert.Equal(t, model.StatusMissingInGSTR2B, m.Status)
	}
	assert.Equal(t, 3, snap.Reconciliation.Summary.ByStatus[model.StatusMissingInGSTR2B])

	mismatchAlerts := 0
	for _, a := range snap.Alerts {
		if a.Type == model.AlertMismatch {
			mismatchAlerts++
			assert.Equal(t, model.SeverityCritical, a.Severity)
		}
	}
	assert.Equal(t, 3, mismatchAlerts)

	require.Len(t, snap.Graph.Nodes, 3)
	require.Len(t, snap.Graph.Edges, 3)
	assert.True(t, snap.Graph.PageRankConverged)
	for _, e := range snap.Graph.Edges {
		assert.True(t, e.IsRisk, e.InvoiceID)
		assert.True(t, e.IsMismatched, e.InvoiceID)
	}
	masterminds := 0
	for _, n := range snap.Graph.Nodes {
		if n.Mastermind {
			masterminds++
		}
	}
	assert.Equal(t, 1, masterminds)
	assert.Equal(t, "Delhi", snap.Graph.Nodes[0].Jurisdiction)
	assert.Len(t, snap.Risk, 3)
}

func TestEngine_PlaceholderWarning(t *testing.T) {
	raw := ringDataset()
	raw.Tables[ingest.TableOutward].Rows = append(raw.Tables[ingest.TableOutward].Rows,
		[]string{"INV-9", idA, "33ZZZZZ9999Z1Z9", "500", "90", "2024-04-05"})
	engine := newEngine(t, newTestSource(raw))

	snap, err := engine.Rebuild(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Graph.Nodes, 4)
	var unknown int
	for _, n := range snap.Graph.Nodes {
		if n.Unknown {
			unknown++
		}
	}
	assert.Equal(t, 1, unknown)
	require.NotEmpty(t, snap.Warnings)
	assert.Equal(t, model.WarnReference, snap.Warnings[0].Kind)
}

func renderAll(t *testing.T, r *Renderer, snap *model.Snapshot) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	for _, name := range Sections {
		data, err := r.Section(snap, name)
		require.NoError(t, err)
		out[name] = data
	}
	return out
}

func TestEngine_Idempotent(t *testing.T) {
	r := NewRenderer(nil, 0, true, 20)

	first, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)
	second, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, renderAll(t, r, first), renderAll(t, r, second))

	engine := newEngine(t, newTestSource(ringDataset()))
	a, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	b, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, a, b, "every rebuild publishes a fresh snapshot")
	assert.Equal(t, a.Version, b.Version, "unchanged data keeps the version")
	assert.Equal(t, renderAll(t, r, a), renderAll(t, r, b))
}

func TestEngine_RowOrderDoesNotMatter(t *testing.T) {
	r := NewRenderer(nil, 0, false, 20)
	shuffled := ringDataset()
	rows := shuffled.Tables[ingest.TableOutward].Rows
	rows[0], rows[2] = rows[2], rows[0]

	a, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)
	b, err := newEngine(t, newTestSource(shuffled)).Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, renderAll(t, r, a), renderAll(t, r, b))
}

func TestEngine_VersionAdvancesOnChange(t *testing.T) {
	src := newTestSource(ringDataset())
	engine := newEngine(t, src)

	v1, err := engine.Rebuild(context.Background())
	require.NoError(t, err)

	changed := ringDataset()
	changed.Tables[ingest.TableOutward].Rows[0][3] = "250000"
	src.set(changed, nil)

	v2, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v1.Version+1, v2.Version)
	assert.NotEqual(t, v1.Fingerprint, v2.Fingerprint)
}

func TestEngine_FailedBuildKeepsSnapshot(t *testing.T) {
	src := newTestSource(ringDataset())
	engine := newEngine(t, src)

	good, err := engine.Rebuild(context.Background())
	require.NoError(t, err)

	broken := ringDataset()
	broken.Tables[ingest.TableOutward].Header[3] = "amount_typo"
	src.set(broken, nil)

	snap, err := engine.Rebuild(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	var integrity *model.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, ingest.TableOutward, integrity.Table)
	assert.Equal(t, "value", integrity.Column)
	assert.Same(t, good, engine.Current())

	src.set(nil, errors.New("disk gone"))
	_, err = engine.Rebuild(context.Background())
	require.Error(t, err)
	assert.Same(t, good, engine.Current())
}

func TestEngine_MissingTable(t *testing.T) {
	raw := ringDataset()
	delete(raw.Tables, ingest.TableSummaries)
	engine := newEngine(t, newTestSource(raw))

	_, err := engine.Rebuild(context.Background())

	var integrity *model.DataIntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, ingest.TableSummaries, integrity.Table)
	assert.Nil(t, engine.Current())
}

func TestEngine_CoalescesConcurrentRebuilds(t *testing.T) {
	src := newTestSource(ringDataset())
	src.gate = make(chan struct{})
	src.entered = make(chan struct{}, 8)
	engine := newEngine(t, src)

	firstDone := make(chan *model.Snapshot, 1)
	go func() {
		snap, err := engine.Rebuild(context.Background())
		assert.NoError(t, err)
		firstDone <- snap
	}()
	<-src.entered

	const followers = 5
	var wg sync.WaitGroup
	results := make([]*model.Snapshot, followers)
	for i := 0; i < followers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := engine.Rebuild(context.Background())
			assert.NoError(t, err)
			results[i] = snap
		}()
	}

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.pending != nil && engine.pending.waiters == followers
	}, time.Second, time.Millisecond)

	close(src.gate)
	first := <-firstDone
	wg.Wait()

	assert.Equal(t, int32(2), src.loads.Load(), "one in-flight build plus exactly one follow-up")
	for _, snap := range results {
		assert.Same(t, results[0], snap, "coalesced callers share the follow-up result")
	}
	assert.NotSame(t, first, results[0])
	assert.Same(t, results[0], engine.Current())
}

func TestEngine_WaitCancelledBuildContinues(t *testing.T) {
	src := newTestSource(ringDataset())
	src.gate = make(chan struct{})
	src.entered = make(chan struct{}, 1)
	engine := newEngine(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := engine.Rebuild(ctx)
		errCh <- err
	}()
	<-src.entered
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(src.gate)
	require.Eventually(t, func() bool { return engine.Current() != nil }, time.Second, time.Millisecond)
}

func TestRenderer_WriteDirAndCache(t *testing.T) {
	snap, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)

	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	r := NewRenderer(mem, 0, true, 2)
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := r.WriteDir(snap, dir)
	require.NoError(t, err)
	require.Len(t, paths, len(Sections))
	assert.Equal(t, len(Sections)-1, mem.Len(), "build.json is not cached")

	build, err := os.ReadFile(filepath.Join(dir, SectionBuild))
	require.NoError(t, err)
	assert.Contains(t, string(build), `"version": 1`)
	assert.Contains(t, string(build), snap.Fingerprint)

	risk, err := os.ReadFile(filepath.Join(dir, SectionRisk))
	require.NoError(t, err)
	assert.Contains(t, string(risk), `"entities": 3`)
	assert.Equal(t, 2, strings.Count(string(risk), `"entity_id"`), "leaderboard is truncated for rendering")

	md, err := os.ReadFile(filepath.Join(dir, SectionSummary))
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Fraud Patterns")
	assert.Contains(t, string(md), "₹3,00,000")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(Sections), "no temp files left behind")
}

func TestRenderer_CacheTracksSkippedRows(t *testing.T) {
	r := NewRenderer(cache.NewMemoryCache(time.Minute, time.Minute), 0, false, 20)

	clean, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)
	first, err := r.Section(clean, SectionSummary)
	require.NoError(t, err)
	assert.NotContains(t, string(first), "## Warnings")

	noisy := ringDataset()
	out := noisy.Table(ingest.TableOutward)
	out.Rows = append(out.Rows,
		[]string{"INV-1", idA, idB, "100000", "18000", "2024-04-01"},
		[]string{"INV-9", "SHORT", idB, "100000", "18000", "2024-04-05"},
	)
	dirty, err := newEngine(t, newTestSource(noisy)).Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, clean.Fingerprint, dirty.Fingerprint, "skipped rows do not change the decoded records")

	second, err := r.Section(dirty, SectionSummary)
	require.NoError(t, err)
	assert.Contains(t, string(second), "## Warnings")
	assert.Contains(t, string(second), "SKIPPED_ROW")
	assert.Equal(t, string(r.RenderMarkdown(dirty)), string(second))
}

func TestRenderer_UnknownSection(t *testing.T) {
	r := NewRenderer(nil, 0, false, 20)
	_, err := r.Section(&model.Snapshot{}, "nope.json")
	assert.Error(t, err)
}

func TestRenderer_Summary(t *testing.T) {
	snap, err := newEngine(t, newTestSource(ringDataset())).Rebuild(context.Background())
	require.NoError(t, err)

	var b strings.Builder
	NewRenderer(nil, 0, false, 20).RenderSummary(&b, snap)

	assert.Contains(t, b.String(), "Snapshot v1")
	assert.Contains(t, b.String(), "Fraud patterns: 1 (circular value ₹3,00,000)")
}

func TestDirBuilder(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "q1")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	for _, tbl := range ringDataset().Tables {
		lines := []string{strings.Join(tbl.Header, ",")}
		for _, row := range tbl.Rows {
			lines = append(lines, strings.Join(row, ","))
		}
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, tbl.Name+".csv"), []byte(strings.Join(lines, "\n")), 0o644))
	}

	outRoot := t.TempDir()
	b := NewDirBuilder(model.DefaultConfig(), NewRenderer(nil, 0, false, 20), outRoot)

	snap, err := b.BuildDir(context.Background(), dataDir)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Patterns.Summary.ByType[model.PatternCircular])
	assert.FileExists(t, filepath.Join(outRoot, "q1", SectionGraph))

	_, err = b.BuildDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNewPipeline_BadIDMode(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Validation.IDMode = "strictest"

	_, err := NewPipeline(cfg, newTestSource(nil))
	assert.Error(t, err)
}
