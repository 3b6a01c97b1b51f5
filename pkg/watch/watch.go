// Package watch keeps the active knowledge graph in sync with a directory
// of YAML pack files on disk. It knows how to read and parse packs and how
// to rebuild the merged graph via pkg/pack, but nothing about propagation
// or HTTP; those concerns belong to their own packages.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lattice-health/physioreason/pkg/logging"
	"github.com/lattice-health/physioreason/pkg/metrics"
	"github.com/lattice-health/physioreason/pkg/model"
	"github.com/lattice-health/physioreason/pkg/pack"
)

// Config controls a Watcher's directory and debounce interval.
type Config struct {
	Dir      string
	Debounce time.Duration
}

// DefaultConfig returns the documented defaults: watch "knowledge/packs"
// coalescing bursts of filesystem events within 500ms.
func DefaultConfig() Config {
	return Config{
		Dir:      "knowledge/packs",
		Debounce: 500 * time.Millisecond,
	}
}

// ReloadResult is returned to callers of Reload and pushed to subscribers
// after a successful (or rejected) rebuild.
type ReloadResult struct {
	Graph       *model.Graph
	Diagnostics []model.Diagnostic
	Err         error
	At          time.Time
}

// Watcher owns the currently active graph and, optionally, watches a
// directory of YAML pack files for changes, atomically swapping the graph
// on every successful reload. A fatal load error leaves the previously
// active graph untouched, per the loader's documented contract.
type Watcher struct {
	cfg    Config
	logger logging.Logger
	reg    *metrics.Registry

	current atomic.Pointer[model.Graph]

	fsWatcher *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu          sync.Mutex
	subscribers []chan ReloadResult
}

// New constructs a Watcher and performs an initial synchronous load of cfg.Dir.
// The returned error is only non-nil if that initial load fails fatally; a
// caller with no packs directory yet may pass a directory that does not
// exist and receive an empty graph instead of an error.
func New(cfg Config, logger logging.Logger, reg *metrics.Registry) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry()
	}

	w := &Watcher{cfg: cfg, logger: logger, reg: reg}

	graph, diags, err := w.loadOnce()
	if err != nil {
		return nil, err
	}
	w.current.Store(graph)
	w.logDiagnostics(diags)
	w.reg.RecordPackReload(graph.NodeCount(), len(graph.Edges()), len(graph.Rules()))

	return w, nil
}

// Graph returns the currently active graph. Safe for concurrent use with
// Reload and the background watch loop.
func (w *Watcher) Graph() *model.Graph {
	return w.current.Load()
}

// Subscribe registers a channel that receives every reload outcome
// (successful or rejected) from this point forward. The channel is
// buffered by the caller's choice; a full channel drops the notification
// rather than blocking the watch loop.
func (w *Watcher) Subscribe(ch chan ReloadResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, ch)
}

// Reload synchronously rebuilds the graph from disk and, on success,
// atomically swaps it in. On a fatal load error the previously active
// graph is left in place and the error is returned to the caller as well
// as broadcast to subscribers.
func (w *Watcher) Reload() (*model.Graph, []model.Diagnostic, error) {
	graph, diags, err := w.loadOnce()
	result := ReloadResult{Diagnostics: diags, At: time.Now()}

	if err != nil {
		w.reg.RecordPackReloadError()
		w.logger.Error("pack reload rejected", logging.Error(err))
		result.Err = err
		w.broadcast(result)
		return nil, diags, err
	}

	w.current.Store(graph)
	w.reg.RecordPackReload(graph.NodeCount(), len(graph.Edges()), len(graph.Rules()))
	w.logDiagnostics(diags)
	w.logger.Info("pack reloaded",
		logging.Int("nodes", graph.NodeCount()),
		logging.Int("edges", len(graph.Edges())),
		logging.Int("rules", len(graph.Rules())),
	)

	result.Graph = graph
	w.broadcast(result)
	return graph, diags, nil
}

// Start launches the fsnotify-backed watch loop in the background. It is a
// no-op if the configured directory does not exist yet; Reload can still be
// called explicitly (e.g. from POST /reload) once files show up.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := os.Stat(w.cfg.Dir); err != nil {
		w.logger.Warn("watch: packs directory not present, watch loop disabled", logging.String("dir", w.cfg.Dir))
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.cfg.Dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch: add %s: %w", w.cfg.Dir, err)
	}
	w.fsWatcher = fsw

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(loopCtx)

	w.logger.Info("watch: started", logging.String("dir", w.cfg.Dir))
	return nil
}

// Stop tears down the background watch loop, if running.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
}

// loop drains fsnotify events, coalescing bursts within cfg.Debounce into a
// single reload, until ctx is cancelled.
func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	resetDebounce := func() {
		if timer == nil {
			timer = time.NewTimer(w.cfg.Debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.cfg.Debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isRelevant(event) {
				continue
			}
			resetDebounce()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch: fsnotify error", logging.Error(err))

		case <-timerC:
			timerC = nil
			if _, _, err := w.Reload(); err != nil {
				w.logger.Error("watch: reload after change failed", logging.Error(err))
			}
		}
	}
}

func isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) broadcast(result ReloadResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subscribers {
		select {
		case ch <- result:
		default:
		}
	}
}

func (w *Watcher) logDiagnostics(diags []model.Diagnostic) {
	for _, d := range diags {
		w.logger.Warn("pack diagnostic",
			logging.String("document", d.Document),
			logging.String("record", d.Record),
			logging.String("message", d.Message),
		)
	}
}

// loadOnce reads every *.yaml/*.yml file directly under cfg.Dir, parses it
// into a model.Document and hands the batch to pack.Load. A missing
// directory is treated as an empty pack set rather than an error, so a
// fresh checkout with no knowledge packs yet still starts.
func (w *Watcher) loadOnce() (*model.Graph, []model.Diagnostic, error) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if os.IsNotExist(err) {
		return pack.Load(nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("watch: read %s: %w", w.cfg.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]model.Document, 0, len(names))
	for _, name := range names {
		path := filepath.Join(w.cfg.Dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("watch: read %s: %w", path, err)
		}
		var doc model.Document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("watch: parse %s: %w", path, err)
		}
		if doc.Name == "" {
			doc.Name = name
		}
		docs = append(docs, doc)
	}

	return pack.Load(docs)
}
