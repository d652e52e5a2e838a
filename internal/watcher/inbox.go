package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
	"go.uber.org/zap"
)

// IngestFunc ingests the file at path into namespace.
type IngestFunc func(ctx context.Context, namespace, path string) error

// Inbox ingests files dropped under <root>/<namespace>/. Files directly under the root
// or in a directory that is not a valid namespace are ignored. After a successful
// ingest the file is moved to <processedDir>/<namespace>/ when processedDir is set.
type Inbox struct {
	watcher      *Watcher
	processedDir string
	ingest       IngestFunc
	logger       *zap.Logger
	ctx          context.Context
}

// NewInbox creates an inbox watching root.
func NewInbox(root, processedDir string, extensions []string, ingest IngestFunc, opts ...WatcherOption) *Inbox {
	in := &Inbox{
		processedDir: processedDir,
		ingest:       ingest,
		ctx:          context.Background(),
	}
	if processedDir != "" {
		in.processedDir = filepath.Clean(processedDir)
	}
	in.watcher = NewWatcher(root, extensions, in.handle, opts...)
	in.logger = in.watcher.logger
	return in
}

// Start begins watching. When syncExisting is set, files already in the inbox are
// ingested in the background.
func (in *Inbox) Start(ctx context.Context, syncExisting bool) error {
	in.ctx = ctx
	if err := in.watcher.Start(ctx); err != nil {
		return err
	}
	in.logger.Info("inbox watching", zap.String("root", in.watcher.Root()), zap.String("processed_dir", in.processedDir))
	if syncExisting {
		go in.watcher.SyncExistingFiles()
	}
	return nil
}

// Stop stops watching.
func (in *Inbox) Stop() { in.watcher.Stop() }

// Root returns the inbox directory.
func (in *Inbox) Root() string { return in.watcher.Root() }

// NamespaceFor returns the namespace a file under root belongs to: the name of the
// first directory below root.
func NamespaceFor(root, path string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return "", false
	}
	if models.ValidateNamespace(parts[0]) != nil {
		return "", false
	}
	return parts[0], true
}

func (in *Inbox) handle(path string) {
	if in.processedDir != "" && inDir(in.processedDir, path) {
		return
	}
	namespace, ok := NamespaceFor(in.watcher.Root(), path)
	if !ok {
		in.logger.Debug("inbox ignoring file outside a namespace directory", zap.String("path", path))
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := in.ingest(in.ctx, namespace, path); err != nil {
		in.logger.Warn("inbox ingest failed",
			zap.String("namespace", namespace),
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	if in.processedDir == "" {
		return
	}
	dest := filepath.Join(in.processedDir, namespace, filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		in.logger.Warn("inbox cannot create processed directory", zap.String("path", dest), zap.Error(err))
		return
	}
	if err := os.Rename(path, dest); err != nil {
		in.logger.Warn("inbox cannot move processed file", zap.String("from", path), zap.String("to", dest), zap.Error(err))
		return
	}
	in.logger.Debug("inbox file processed", zap.String("namespace", namespace), zap.String("moved_to", dest))
}
