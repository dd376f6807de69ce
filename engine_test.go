package modelfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProvider returns a canned manifest without touching the network.
type fakeProvider struct {
	specs []FileSpec
	err   error
}

func (p *fakeProvider) ModelFiles(ctx context.Context, modelID string) ([]FileSpec, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.specs, nil
}

// rangeServer serves named blobs over HTTP with byte-range support and
// records every request it saw, per blob.
type rangeServer struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	hits     map[string]int
	ranges   map[string][]string
	failures map[string]int
	noRanges bool
}

func newRangeServer(blobs map[string][]byte) *rangeServer {
	return &rangeServer{
		blobs:    blobs,
		hits:     make(map[string]int),
		ranges:   make(map[string][]string),
		failures: make(map[string]int),
	}
}

func (s *rangeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.hits[name]++
	rng := r.Header.Get("Range")
	if rng != "" {
		s.ranges[name] = append(s.ranges[name], rng)
	}
	fail := s.failures[name] > 0
	if fail {
		s.failures[name]--
	}
	noRanges := s.noRanges
	data, ok := s.blobs[name]
	s.mu.Unlock()

	if fail {
		http.Error(w, "upstream hiccup", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	if rng != "" && !noRanges {
		var start int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-", &start); err != nil || start >= int64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(data)-1, len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)-int(start)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start:])
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (s *rangeServer) hitCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *rangeServer) rangesSeen(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges[name]...)
}

func specsFor(baseURL string, blobs map[string][]byte, names []string) []FileSpec {
	specs := make([]FileSpec, 0, len(names))
	for _, name := range names {
		data := blobs[name]
		specs = append(specs, FileSpec{
			Name: name,
			Size: int64(len(data)),
			Hash: sha256Hex(data),
			URL:  baseURL + "/" + name,
		})
	}
	return specs
}

func newTestEngine(t *testing.T, provider ManifestProvider, opts ...EngineOption) *Engine {
	t.Helper()
	cfg := Config{
		StateDir:  t.TempDir(),
		ChunkSize: 1024,
	}
	eng, err := NewEngine(cfg, provider, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func makeBlob(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestNewEngineRequiresProvider(t *testing.T) {
	if _, err := NewEngine(Config{StateDir: t.TempDir()}, nil); err == nil {
		t.Error("NewEngine(nil provider) error = nil, want error")
	}
}

func TestEngineRunDownloadsManifest(t *testing.T) {
	blobs := map[string][]byte{
		"config.json":       []byte(`{"layers": 32}`),
		"weights/model.bin": makeBlob(5000),
		"tokenizer.json":    makeBlob(300),
	}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()

	names := []string{"config.json", "weights/model.bin", "tokenizer.json"}
	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, names)}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	rep, err := eng.Run(context.Background(), "org/model", dest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatalf("Report.Succeeded() = false, files: %+v", rep.Files)
	}
	if rep.Completed() != len(names) {
		t.Errorf("Report.Completed() = %d, want %d", rep.Completed(), len(names))
	}

	for name, want := range blobs {
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: downloaded bytes differ from source", name)
		}
	}

	rec, ok := eng.Store().Load("org/model")
	if !ok {
		t.Fatal("status record missing after run")
	}
	for _, f := range rec.Files {
		if f.Status != StateCompleted {
			t.Errorf("%s: status = %q, want %q", f.Filename, f.Status, StateCompleted)
		}
		if f.DownloadedSize != int64(len(blobs[f.Filename])) {
			t.Errorf("%s: downloaded_size = %d, want %d", f.Filename, f.DownloadedSize, len(blobs[f.Filename]))
		}
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(2048)}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()
	rs := srv.Config.Handler.(*rangeServer)

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	if _, err := eng.Run(context.Background(), "org/model", dest); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before := rs.hitCount("model.bin")

	rep, err := eng.Run(context.Background(), "org/model", dest)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatal("second Run() did not succeed")
	}
	if after := rs.hitCount("model.bin"); after != before {
		t.Errorf("second run issued %d extra requests, want 0", after-before)
	}
}

func TestEngineRunResumesPartialArtifact(t *testing.T) {
	blob := makeBlob(2000)
	blobs := map[string][]byte{"model.bin": blob}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()
	rs := srv.Config.Handler.(*rangeServer)

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	// A previous run got 400 bytes in before dying.
	temp := filepath.Join(dest, "model.bin"+partSuffix)
	if err := os.WriteFile(temp, blob[:400], 0o644); err != nil {
		t.Fatalf("seeding partial artifact: %v", err)
	}

	rep, err := eng.Run(context.Background(), "org/model", dest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatalf("Run() did not succeed, files: %+v", rep.Files)
	}

	seen := rs.rangesSeen("model.bin")
	if len(seen) == 0 || seen[0] != "bytes=400-" {
		t.Errorf("range requests = %v, want [bytes=400-]", seen)
	}

	got, err := os.ReadFile(filepath.Join(dest, "model.bin"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("resumed file differs from source")
	}
	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Error("partial artifact should be gone after completion")
	}
}

func TestEngineRunRestartsWhenRangeIgnored(t *testing.T) {
	blob := makeBlob(1500)
	blobs := map[string][]byte{"model.bin": blob}
	rs := newRangeServer(blobs)
	rs.noRanges = true
	srv := httptest.NewServer(rs)
	defer srv.Close()

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	// Stale partial content that no longer matches the remote bytes.
	temp := filepath.Join(dest, "model.bin"+partSuffix)
	if err := os.WriteFile(temp, []byte("stale junk from some other era"), 0o644); err != nil {
		t.Fatalf("seeding partial artifact: %v", err)
	}

	rep, err := eng.Run(context.Background(), "org/model", dest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatalf("Run() did not succeed, files: %+v", rep.Files)
	}

	got, err := os.ReadFile(filepath.Join(dest, "model.bin"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("file differs from source after full-content restart")
	}
}

func TestEngineRunHashMismatch(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(512)}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()

	specs := specsFor(srv.URL, blobs, []string{"model.bin"})
	specs[0].Hash = sha256Hex([]byte("these are not the bytes you are looking for"))
	provider := &fakeProvider{specs: specs}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	rep, err := eng.Run(context.Background(), "org/model", dest, WithMaxAttempts(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Succeeded() {
		t.Fatal("Run() succeeded despite hash mismatch")
	}
	if rep.Files[0].State != StateFailed {
		t.Errorf("State = %q, want %q", rep.Files[0].State, StateFailed)
	}
	if !errors.Is(rep.Files[0].Err, ErrHashMismatch) {
		t.Errorf("Err = %v, want ErrHashMismatch", rep.Files[0].Err)
	}

	// Neither the final file nor the corrupt artifact may survive.
	if _, err := os.Stat(filepath.Join(dest, "model.bin")); !os.IsNotExist(err) {
		t.Error("final file exists despite failed verification")
	}
	if _, err := os.Stat(filepath.Join(dest, "model.bin"+partSuffix)); !os.IsNotExist(err) {
		t.Error("corrupt partial artifact was left behind")
	}
}

func TestEngineRunSkipVerify(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(512)}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()

	specs := specsFor(srv.URL, blobs, []string{"model.bin"})
	specs[0].Hash = sha256Hex([]byte("wrong"))
	provider := &fakeProvider{specs: specs}
	eng := newTestEngine(t, provider)

	rep, err := eng.Run(context.Background(), "org/model", t.TempDir(), WithSkipVerify(), WithMaxAttempts(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Errorf("Run() with verification disabled did not succeed, files: %+v", rep.Files)
	}
}

func TestEngineRunRetriesTransientFailure(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(800)}
	rs := newRangeServer(blobs)
	rs.failures["model.bin"] = 1
	srv := httptest.NewServer(rs)
	defer srv.Close()

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)

	rep, err := eng.Run(context.Background(), "org/model", t.TempDir(), WithMaxAttempts(3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatalf("Run() did not recover from transient failure, files: %+v", rep.Files)
	}
	if got := rs.hitCount("model.bin"); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestEngineRunExhaustsAttempts(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(800)}
	rs := newRangeServer(blobs)
	rs.failures["model.bin"] = 100
	srv := httptest.NewServer(rs)
	defer srv.Close()

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)

	rep, err := eng.Run(context.Background(), "org/model", t.TempDir(), WithMaxAttempts(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Succeeded() {
		t.Fatal("Run() succeeded against a permanently failing server")
	}
	if rep.Files[0].State != StateFailed {
		t.Errorf("State = %q, want %q", rep.Files[0].State, StateFailed)
	}
	if !errors.Is(rep.Files[0].Err, ErrNetworkError) {
		t.Errorf("Err = %v, want ErrNetworkError", rep.Files[0].Err)
	}
	if got := rs.hitCount("model.bin"); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestEngineRunEmptyManifest(t *testing.T) {
	provider := &fakeProvider{}
	eng := newTestEngine(t, provider)

	rep, err := eng.Run(context.Background(), "org/empty", t.TempDir())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Files) != 0 {
		t.Errorf("len(Files) = %d, want 0", len(rep.Files))
	}
	if !rep.Succeeded() {
		t.Error("empty run should count as succeeded")
	}

	// An empty manifest must not manufacture a status record.
	if _, err := os.Stat(eng.Store().Path("org/empty")); !os.IsNotExist(err) {
		t.Error("status record written for an empty manifest")
	}
}

func TestEngineRunManifestError(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("%w: hub said no", ErrManifestError)}
	eng := newTestEngine(t, provider)

	_, err := eng.Run(context.Background(), "org/model", t.TempDir())
	if !errors.Is(err, ErrManifestError) {
		t.Errorf("Run() error = %v, want ErrManifestError", err)
	}
}

func TestEngineRunConcurrentWorkers(t *testing.T) {
	blobs := make(map[string][]byte)
	var names []string
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("shard-%d.bin", i)
		blobs[name] = makeBlob(1000 + i*137)
		names = append(names, name)
	}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, names)}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	rep, err := eng.Run(context.Background(), "org/sharded", dest, WithConcurrency(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Completed() != len(names) {
		t.Fatalf("Report.Completed() = %d, want %d", rep.Completed(), len(names))
	}
	for name, want := range blobs {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("%s: downloaded bytes differ from source", name)
		}
	}
}

func TestEngineRunCancellation(t *testing.T) {
	blob := makeBlob(100)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hand over a first slice, then stall until the client goes away.
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		w.Write(blob)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	provider := &fakeProvider{specs: []FileSpec{{Name: "model.bin", Size: 1000000, URL: srv.URL + "/model.bin"}}}
	eng := newTestEngine(t, provider)
	dest := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	progress := func(p FileProgress) {
		if p.State == StateDownloading && p.DownloadedBytes > 0 {
			once.Do(cancel)
		}
	}

	rep, err := eng.Run(ctx, "org/model", dest, WithProgress(progress))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Files[0].State != StateStopped {
		t.Fatalf("State = %q, want %q", rep.Files[0].State, StateStopped)
	}

	// The partial artifact stays put for the next run to resume from.
	fi, err := os.Stat(filepath.Join(dest, "model.bin"+partSuffix))
	if err != nil {
		t.Fatalf("partial artifact missing after cancellation: %v", err)
	}
	if fi.Size() == 0 {
		t.Error("partial artifact is empty, expected the received bytes")
	}

	rec, ok := eng.Store().Load("org/model")
	if !ok {
		t.Fatal("status record missing after cancelled run")
	}
	if rec.Files[0].Status != StateStopped {
		t.Errorf("persisted status = %q, want %q", rec.Files[0].Status, StateStopped)
	}
}

func TestEngineRunProgressCallback(t *testing.T) {
	blobs := map[string][]byte{"model.bin": makeBlob(3000)}
	srv := httptest.NewServer(newRangeServer(blobs))
	defer srv.Close()

	provider := &fakeProvider{specs: specsFor(srv.URL, blobs, []string{"model.bin"})}
	eng := newTestEngine(t, provider)

	var mu sync.Mutex
	var states []State
	progress := func(p FileProgress) {
		mu.Lock()
		states = append(states, p.State)
		mu.Unlock()
	}

	rep, err := eng.Run(context.Background(), "org/model", t.TempDir(), WithProgress(progress))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !rep.Succeeded() {
		t.Fatal("Run() did not succeed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		t.Fatal("progress callback was never invoked")
	}
	var sawDownloading bool
	for _, s := range states {
		if s == StateDownloading {
			sawDownloading = true
		}
	}
	if !sawDownloading {
		t.Error("progress never reported downloading state")
	}
	if states[len(states)-1] != StateCompleted {
		t.Errorf("last progress state = %q, want %q", states[len(states)-1], StateCompleted)
	}
}

// fakeClock is a manually stepped time source for checkpoint cadence tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// stallServer serves a blob in two halves, parking between them until
// released, so a test can inspect mid-transfer state.
func stallServer(t *testing.T, blob []byte, release chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
		w.WriteHeader(http.StatusOK)
		w.Write(blob[:len(blob)/2])
		w.(http.Flusher).Flush()
		<-release
		w.Write(blob[len(blob)/2:])
	}))
	t.Cleanup(srv.Close)
	return srv
}

// waitForRecord polls the store until cond accepts the record or the
// deadline passes.
func waitForRecord(t *testing.T, store *StatusStore, modelID string, cond func(StatusRecord) bool) StatusRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if rec, ok := store.Load(modelID); ok && cond(rec) {
			return rec
		}
		if time.Now().After(deadline) {
			t.Fatal("status record did not reach the expected shape in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEngineCheckpointCadence(t *testing.T) {
	const interval = 10 * time.Second
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newCadenceEngine := func(t *testing.T, provider ManifestProvider, clk *fakeClock) *Engine {
		t.Helper()
		cfg := Config{
			StateDir:           t.TempDir(),
			ChunkSize:          1024,
			CheckpointInterval: interval,
		}
		eng, err := NewEngine(cfg, provider, WithClock(clk.Now))
		if err != nil {
			t.Fatalf("NewEngine() error = %v", err)
		}
		return eng
	}

	t.Run("persists mid-transfer snapshot once interval elapses", func(t *testing.T) {
		blob := makeBlob(4096)
		release := make(chan struct{})
		srv := stallServer(t, blob, release)

		provider := &fakeProvider{specs: []FileSpec{{Name: "model.bin", Size: int64(len(blob)), URL: srv.URL + "/model.bin"}}}
		clk := &fakeClock{now: start}
		eng := newCadenceEngine(t, provider, clk)

		// Step past the interval as soon as the first bytes land, so the
		// next unforced checkpoint is due.
		var once sync.Once
		progress := func(p FileProgress) {
			if p.State == StateDownloading && p.DownloadedBytes > 0 {
				once.Do(func() { clk.Set(start.Add(interval + time.Second)) })
			}
		}

		dest := t.TempDir()
		done := make(chan error, 1)
		go func() {
			_, err := eng.Run(context.Background(), "org/model", dest, WithProgress(progress))
			done <- err
		}()

		rec := waitForRecord(t, eng.Store(), "org/model", func(r StatusRecord) bool {
			return len(r.Files) == 1 && r.Files[0].Status == StateDownloading && r.Files[0].DownloadedSize > 0
		})
		if rec.Files[0].DownloadedSize >= int64(len(blob)) {
			t.Errorf("mid-transfer downloaded_size = %d, want a partial count", rec.Files[0].DownloadedSize)
		}

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		final, ok := eng.Store().Load("org/model")
		if !ok || final.Files[0].Status != StateCompleted {
			t.Errorf("final record = %+v, want completed", final)
		}
	})

	t.Run("suppresses saves within the interval", func(t *testing.T) {
		blob := makeBlob(4096)
		release := make(chan struct{})
		srv := stallServer(t, blob, release)

		provider := &fakeProvider{specs: []FileSpec{{Name: "model.bin", Size: int64(len(blob)), URL: srv.URL + "/model.bin"}}}
		clk := &fakeClock{now: start}
		eng := newCadenceEngine(t, provider, clk)

		// The clock never moves, so every unforced checkpoint lands inside
		// the interval and must be skipped.
		reached := make(chan struct{})
		var once sync.Once
		progress := func(p FileProgress) {
			if p.DownloadedBytes >= int64(len(blob)/2) {
				once.Do(func() { close(reached) })
			}
		}

		dest := t.TempDir()
		done := make(chan error, 1)
		go func() {
			_, err := eng.Run(context.Background(), "org/model", dest, WithProgress(progress))
			done <- err
		}()

		<-reached
		rec, ok := eng.Store().Load("org/model")
		if !ok {
			t.Fatal("initial status record missing")
		}
		if rec.Files[0].Status != StatePending || rec.Files[0].DownloadedSize != 0 {
			t.Errorf("record mid-transfer = %s/%d, want the initial pending/0 snapshot",
				rec.Files[0].Status, rec.Files[0].DownloadedSize)
		}

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		// Terminal transitions force a snapshot regardless of the clock.
		final, ok := eng.Store().Load("org/model")
		if !ok || final.Files[0].Status != StateCompleted {
			t.Errorf("final record = %+v, want completed", final)
		}
		if final.Files[0].DownloadedSize != int64(len(blob)) {
			t.Errorf("final downloaded_size = %d, want %d", final.Files[0].DownloadedSize, len(blob))
		}
	})
}

func TestMergeProgress(t *testing.T) {
	files := []*FileProgress{
		{Name: "a.bin", ExpectedSize: 1000, State: StatePending},
		{Name: "b.bin", ExpectedSize: 2000, State: StatePending},
	}
	prev := StatusRecord{
		ModelID: "org/model",
		Files: []FileStatus{
			{Filename: "a.bin", FileSize: 1000, DownloadedSize: 500, Status: StateDownloading},
			{Filename: "gone.bin", FileSize: 42, DownloadedSize: 42, Status: StateCompleted},
		},
	}

	mergeProgress(files, prev)

	if files[0].DownloadedBytes != 500 || files[0].State != StateDownloading {
		t.Errorf("a.bin = %d/%q, want 500/%q", files[0].DownloadedBytes, files[0].State, StateDownloading)
	}
	if files[1].DownloadedBytes != 0 || files[1].State != StatePending {
		t.Errorf("b.bin = %d/%q, want 0/%q", files[1].DownloadedBytes, files[1].State, StatePending)
	}
}
