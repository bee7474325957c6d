package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"weave/internal/domain"
)

// ── Inbox Watcher ───────────────────────────────────────────
// Files dropped into the inbox directory are ingested into a designated
// corpus without any UI interaction.

// Appender receives the documents extracted from dropped files.
type Appender interface {
	AppendToCorpus(ctx context.Context, corpus string, docs []domain.RagDocument) error
}

// InboxWatcher watches a directory and ingests every file written into it.
type InboxWatcher struct {
	dir      string
	corpus   string
	appender Appender
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewInboxWatcher creates a watcher over dir feeding the named corpus.
func NewInboxWatcher(dir, corpus string, appender Appender, log *zap.Logger) (*InboxWatcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &InboxWatcher{
		dir:      dir,
		corpus:   corpus,
		appender: appender,
		log:      log,
		watcher:  w,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop until Stop is called.
func (iw *InboxWatcher) Start(ctx context.Context) {
	go iw.loop(ctx)
}

// Stop shuts down the watcher.
func (iw *InboxWatcher) Stop() {
	close(iw.done)
	iw.watcher.Close()
}

func (iw *InboxWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-iw.done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			// Editors and drag-drop fire multiple writes; give the file a
			// moment to settle before reading it.
			time.Sleep(500 * time.Millisecond)
			iw.ingestFile(ctx, event.Name)
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			iw.log.Warn("inbox watch error", zap.Error(err))
		}
	}
}

func (iw *InboxWatcher) ingestFile(ctx context.Context, path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return // skip hidden/partial files
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	docs, err := ReadFile(path)
	if err != nil {
		iw.log.Warn("inbox ingest skipped", zap.String("file", base), zap.Error(err))
		return
	}
	if err := iw.appender.AppendToCorpus(ctx, iw.corpus, docs); err != nil {
		iw.log.Error("inbox ingest failed", zap.String("file", base), zap.Error(err))
		return
	}
	iw.log.Info("inbox file ingested", zap.String("file", base), zap.String("corpus", iw.corpus))

	// Ingested files move to a processed subfolder so they are not
	// re-ingested on the next write event.
	processed := filepath.Join(iw.dir, "processed")
	if err := os.MkdirAll(processed, 0755); err == nil {
		_ = os.Rename(path, filepath.Join(processed, base))
	}
}
