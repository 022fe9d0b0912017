package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Loader reads one source file and memoizes the table for the life of the
// process. There is no reload path: a changed file needs a restart.
type Loader struct {
	log  logrus.FieldLogger
	path string
	opt  Options

	group singleflight.Group
	mu    sync.RWMutex
	table *Table
}

// NewLoader creates a Loader for path. Nothing is read until the first Load.
func NewLoader(log logrus.FieldLogger, path string, opt Options) *Loader {
	return &Loader{
		log:  log.WithField("component", "loader"),
		path: path,
		opt:  opt,
	}
}

// Path returns the source path.
func (l *Loader) Path() string { return l.path }

// Load returns the memoized table, reading the file on first use. Concurrent
// first callers share a single read. Failures are returned as *IOError or
// *FormatError and are not cached.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	l.mu.RLock()
	t := l.table
	l.mu.RUnlock()
	if t != nil {
		return t, nil
	}

	ch := l.group.DoChan("load", func() (any, error) {
		l.mu.RLock()
		cached := l.table
		l.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		start := time.Now()
		loaded, err := Load(l.path, l.opt)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.table = loaded
		l.mu.Unlock()

		l.log.WithFields(logrus.Fields{
			"path":     l.path,
			"rows":     loaded.Len(),
			"columns":  len(loaded.Columns),
			"duration": time.Since(start),
		}).Info("Loaded dataset")

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	}
}
