package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain/document"
	"github.com/kailas-cloud/clinrag/internal/usecase/ingest"
)

var (
	watchType     string
	watchIDPrefix string
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest a directory and keep it in sync",
	Long: `Ingests every .txt and .md file in the directory, then watches it: created or
modified files are re-ingested and removed or renamed files are deleted from the
graph. Events for one file are coalesced until it has been quiet for the debounce
window, so an editor save is ingested once. Stops on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchType, "type", "t", "auto", "document type: guideline, calculator, literature or auto")
	watchCmd.Flags().StringVar(&watchIDPrefix, "id-prefix", "", "prefix added to every derived document id")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 250*time.Millisecond, "quiet period before a changed file is processed")
	rootCmd.AddCommand(watchCmd)
}

type fileAction int

const (
	actionIgnore fileAction = iota
	actionIngest
	actionDelete
)

// classify maps a file system event to what the graph needs. Hidden files and
// non-text formats are ignored.
func classify(ev fsnotify.Event) fileAction {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") || !isDocumentFile(ev.Name) {
		return actionIgnore
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return actionDelete
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return actionIngest
	default:
		return actionIgnore
	}
}

type pathAction struct {
	path string
	act  fileAction
}

// debouncer coalesces events per path. The last action of a burst is emitted on
// C once the path has seen no event for the window.
type debouncer struct {
	window  time.Duration
	C       chan pathAction
	done    chan struct{}
	mu      sync.Mutex
	timers  map[string]*time.Timer
	actions map[string]fileAction
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		C:       make(chan pathAction, 16),
		done:    make(chan struct{}),
		timers:  make(map[string]*time.Timer),
		actions: make(map[string]fileAction),
	}
}

func (d *debouncer) add(path string, act fileAction) {
	if act == actionIgnore {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[path] = act
	if t, ok := d.timers[path]; ok {
		t.Reset(d.window)
		return
	}
	d.timers[path] = time.AfterFunc(d.window, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	act, ok := d.actions[path]
	delete(d.actions, path)
	delete(d.timers, path)
	d.mu.Unlock()
	if !ok {
		return
	}
	select {
	case d.C <- pathAction{path: path, act: act}:
	case <-d.done:
	}
}

// stop cancels pending actions.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
		delete(d.actions, path)
	}
	close(d.done)
}

// syncer applies file events to the ingest service.
type syncer struct {
	ingest *ingest.Service
	prefix string
	typ    document.Type
	logger *zap.Logger
}

func (s *syncer) apply(ctx context.Context, path string, act fileAction) {
	switch act {
	case actionIngest:
		in, err := readInput(path, s.prefix, s.typ)
		if err != nil {
			s.logger.Warn("Skipping unreadable file", zap.String("path", path), zap.Error(err))
			return
		}
		report, err := s.ingest.Ingest(ctx, in)
		if err != nil {
			s.logger.Error("Ingest failed", zap.String("path", path), zap.Error(err))
			return
		}
		s.logger.Info("File ingested",
			zap.String("path", path),
			zap.String("document_id", report.DocumentID),
			zap.Int("chunks", report.Chunks),
		)
	case actionDelete:
		id := documentIDForPath(s.prefix, path)
		if err := s.ingest.Delete(ctx, id); err != nil {
			s.logger.Warn("Delete failed", zap.String("path", path), zap.Error(err))
		}
	}
}

// initial ingests the files already present in dir.
func (s *syncer) initial(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !isDocumentFile(e.Name()) {
			continue
		}
		s.apply(ctx, filepath.Join(dir, e.Name()), actionIngest)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	typ, err := document.ParseType(watchType)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	s := &syncer{ingest: a.ingest, prefix: watchIDPrefix, typ: typ, logger: logger}
	if err := s.initial(ctx, dir); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("Watching directory", zap.String("dir", dir), zap.Duration("debounce", watchDebounce))

	deb := newDebouncer(watchDebounce)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			deb.add(ev.Name, classify(ev))
		case pa := <-deb.C:
			s.apply(ctx, pa.path, pa.act)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", zap.Error(err))
		}
	}
}
