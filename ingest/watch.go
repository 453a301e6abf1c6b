package ingest

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"github.com/hazyhaar/larder/kit"
	"github.com/hazyhaar/larder/watch"
)

// fileKey identifies one version of a file in the drop folder.
type fileKey struct {
	name    string
	size    int64
	modTime time.Time
}

// dropFolder remembers which file versions were already processed.
type dropFolder struct {
	mu   sync.Mutex
	done map[fileKey]bool
}

// claim reports whether this version of the file is new and marks it as
// processed.
func (d *dropFolder) claim(name string, info fs.FileInfo) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := fileKey{name, info.Size(), info.ModTime()}
	if d.done[k] {
		return false
	}
	d.done[k] = true
	return true
}

// Watch ingests dir once, then again each time its content changes, until
// ctx is cancelled. A file is processed once per version (name, size,
// modification time), whether it was accepted or rejected. onRun, when not
// nil, receives the report of every pass that touched at least one file.
func (ing *Ingester) Watch(ctx context.Context, dir string, opts watch.Options, onRun func(*RunReport)) error {
	ctx = kit.WithTransport(ctx, "watch")
	if opts.Logger == nil {
		opts.Logger = ing.logger
	}
	folder := &dropFolder{done: make(map[fileKey]bool)}

	pass := func() error {
		report, err := ing.RunDirFunc(ctx, dir, folder.claim)
		if err != nil {
			return err
		}
		if onRun != nil && len(report.Files) > 0 {
			onRun(report)
		}
		return nil
	}

	if err := pass(); err != nil {
		return err
	}
	watch.New(watch.DirVersion(dir), opts).OnChange(ctx, pass)
	return ctx.Err()
}
