package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tuannm99/pagedb/internal/bufferpool"
	"github.com/tuannm99/pagedb/internal/catalog"
	"github.com/tuannm99/pagedb/internal/heap"
	"github.com/tuannm99/pagedb/internal/storage"
	"github.com/tuannm99/pagedb/pkg/logger"
)

var ErrDatabaseClosed = errors.New("pagedb: database is closed")

// Database wires the config, catalog, heap files, and buffer pool into
// one handle. Heap files live as <workdir>/<table>.dat.
type Database struct {
	mu          sync.Mutex
	cfg         *PageDbConfig
	log         *zap.Logger
	catalog     *catalog.Catalog
	pool        *bufferpool.Pool
	files       []*heap.File
	nextTableID int
	closed      bool
}

// NewDatabase opens the workdir and builds the pool. reg may be nil to
// skip metric registration.
func NewDatabase(cfg *PageDbConfig, reg prometheus.Registerer) (*Database, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.Workdir, storage.FileMode0755); err != nil {
		return nil, fmt.Errorf("pagedb: create workdir: %w", err)
	}
	if cfg.Storage.PageSize > 0 {
		storage.SetPageSize(cfg.Storage.PageSize)
	}

	cat := catalog.New()
	pool := bufferpool.NewPool(cat, cfg.Storage.NumPages, log, reg)

	log.Info("database opened",
		zap.String("workdir", cfg.Storage.Workdir),
		zap.Int("num_pages", cfg.Storage.NumPages),
		zap.Int("page_size", storage.PageSize()))

	return &Database{
		cfg:     cfg,
		log:     log,
		catalog: cat,
		pool:    pool,
	}, nil
}

// CreateTable opens (or creates) the heap file backing name, binds it to
// the pool, and registers it in the catalog.
func (db *Database) CreateTable(name string) (*heap.File, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil, ErrDatabaseClosed
	}

	path := filepath.Join(db.cfg.Storage.Workdir, name+".dat")
	f, err := heap.Open(path, db.nextTableID)
	if err != nil {
		return nil, err
	}
	f.Bind(db.pool)

	if err := db.catalog.AddTable(name, f); err != nil {
		f.Close()
		return nil, err
	}
	db.nextTableID++
	db.files = append(db.files, f)

	db.log.Info("table created", zap.String("name", name), zap.Int("table_id", f.TableID()))
	return f, nil
}

// Table resolves a previously created table by name.
func (db *Database) Table(name string) (*heap.File, error) {
	id, err := db.catalog.TableID(name)
	if err != nil {
		return nil, err
	}
	f, err := db.catalog.DbFile(id)
	if err != nil {
		return nil, err
	}
	return f.(*heap.File), nil
}

// Pool exposes the buffer pool, the entry point for all page access.
func (db *Database) Pool() *bufferpool.Pool {
	return db.pool
}

// Close flushes every dirty page and closes the heap files.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrDatabaseClosed
	}
	db.closed = true

	if err := db.pool.FlushAllPages(); err != nil {
		return fmt.Errorf("pagedb: flush on close: %w", err)
	}
	for _, f := range db.files {
		if err := f.Close(); err != nil {
			return err
		}
	}

	db.log.Info("database closed")
	_ = db.log.Sync()
	return nil
}
