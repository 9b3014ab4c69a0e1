package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	ierrors "github.com/Aman-CERP/docingest/internal/errors"
)

// Files inside a local collection directory.
const (
	VectorsFile = "vectors.hnsw"
	ChunksFile  = "chunks.db"
	FullTextDir = "text.bleve"
)

// CollectionDir returns the directory of a local collection.
func CollectionDir(persistDir, collection string) string {
	return filepath.Join(persistDir, collection)
}

// LocalOptions configures the on-disk backend.
type LocalOptions struct {
	// FullText mirrors chunk text into a bleve index.
	FullText bool
}

// LocalBackend stores collections under a persist directory: vectors in a
// coder/hnsw graph, chunk rows in SQLite and optionally text in bleve.
type LocalBackend struct {
	opts LocalOptions
}

// NewLocalBackend returns a LocalBackend.
func NewLocalBackend(opts LocalOptions) *LocalBackend {
	return &LocalBackend{opts: opts}
}

// Create makes persistDir/collection and writes records into it. The
// collection directory stays locked until the returned Collection is closed.
func (b *LocalBackend) Create(ctx context.Context, target Target, records []Record) (Collection, error) {
	if !ValidCollectionName(target.Collection) {
		return nil, ierrors.ConfigError(fmt.Sprintf("invalid collection name %q", target.Collection), nil)
	}
	if target.PersistDir == "" {
		return nil, ierrors.ConfigError("persist location is empty", nil)
	}
	if len(records) == 0 {
		return nil, ierrors.ValidationError("create called without records", nil)
	}
	dims, err := checkDimensions(records, 0)
	if err != nil {
		return nil, err
	}

	dir := CollectionDir(target.PersistDir, target.Collection)
	lock := NewFileLock(dir)
	if err := lock.Acquire(); err != nil {
		return nil, err
	}

	c, err := b.open(ctx, dir, dims, lock)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	meta := map[string]string{
		MetaDimensions: strconv.Itoa(dims),
		MetaModel:      target.Model,
		MetaScheme:     target.Scheme,
		MetaCreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.chunks.SetMeta(ctx, meta); err != nil {
		_ = c.Close()
		return nil, err
	}

	if err := c.Append(ctx, records); err != nil {
		_ = c.Close()
		return nil, err
	}

	slog.Debug("local collection created",
		slog.String("dir", dir),
		slog.Int("dimensions", dims),
		slog.Int("records", len(records)))
	return c, nil
}

func (b *LocalBackend) open(ctx context.Context, dir string, dims int, lock *FileLock) (*LocalCollection, error) {
	vectorsPath := filepath.Join(dir, VectorsFile)

	existing, err := ReadVectorDimensions(vectorsPath)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeCorruptIndex, err.Error(), err)
	}
	if existing > 0 {
		return nil, collectionExists(dir)
	}

	chunks, err := OpenChunkTable(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeCorruptIndex, err.Error(), err)
	}
	n, err := chunks.Count(ctx)
	if err != nil {
		_ = chunks.Close()
		return nil, err
	}
	if n > 0 {
		_ = chunks.Close()
		return nil, collectionExists(dir)
	}

	c := &LocalCollection{
		dir:         dir,
		vectorsPath: vectorsPath,
		vectors:     NewVectorGraph(dims),
		chunks:      chunks,
		lock:        lock,
	}

	if b.opts.FullText {
		ft, err := OpenFullText(filepath.Join(dir, FullTextDir))
		if err != nil {
			_ = chunks.Close()
			return nil, err
		}
		c.text = ft
	}
	return c, nil
}

func collectionExists(dir string) error {
	return ierrors.New(ierrors.ErrCodeCollectionExists,
		fmt.Sprintf("collection already holds data: %s", dir), nil).
		WithDetail("dir", dir).
		WithSuggestion("choose another collection name or remove the directory")
}

// LocalCollection is an open local collection.
type LocalCollection struct {
	mu          sync.Mutex
	dir         string
	vectorsPath string
	vectors     *VectorGraph
	chunks      *ChunkTable
	text        *FullText
	lock        *FileLock
	closed      bool
}

// Append writes records to the chunk table, the vector graph and the
// full-text index, then saves the graph.
func (c *LocalCollection) Append(ctx context.Context, records []Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}
	if _, err := checkDimensions(records, c.vectors.Dimensions()); err != nil {
		return err
	}

	if err := c.chunks.Insert(ctx, records); err != nil {
		return err
	}

	ids := make([]string, len(records))
	vecs := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vecs[i] = r.Vector
	}
	if err := c.vectors.Add(ids, vecs); err != nil {
		return err
	}

	if c.text != nil {
		if err := c.text.Index(ctx, records); err != nil {
			return err
		}
	}

	return c.vectors.Save(c.vectorsPath)
}

// Count returns the number of vectors stored.
func (c *LocalCollection) Count() int {
	return c.vectors.Count()
}

// Dir returns the collection directory.
func (c *LocalCollection) Dir() string {
	return c.dir
}

// Close flushes every store and releases the directory lock.
func (c *LocalCollection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	errs = append(errs, c.chunks.Close())
	if c.text != nil {
		errs = append(errs, c.text.Close())
	}
	errs = append(errs, c.vectors.Close(), c.lock.Release())
	return errors.Join(errs...)
}

// Info describes a persisted local collection.
type Info struct {
	Collection string
	Dir        string
	Chunks     int
	Vectors    int
	Dimensions int
	Model      string
	Scheme     string
	CreatedAt  string
	// FullText is the bleve document count, or -1 when there is no index.
	FullText int
	// Missing lists chunk ids with no vector.
	Missing []string
	Sample  []StoredChunk
}

// Consistent reports whether every chunk row has a vector and the counts
// agree.
func (i *Info) Consistent() bool {
	return len(i.Missing) == 0 && i.Chunks == i.Vectors && (i.FullText < 0 || i.FullText == i.Chunks)
}

// Inspect opens a local collection read-only and cross-checks its stores.
// Up to sample chunks are returned in insertion order.
func Inspect(ctx context.Context, persistDir, collection string, sample int) (*Info, error) {
	dir := CollectionDir(persistDir, collection)
	chunksPath := filepath.Join(dir, ChunksFile)
	if _, err := os.Stat(chunksPath); err != nil {
		return nil, ierrors.New(ierrors.ErrCodeSourceNotFound,
			fmt.Sprintf("no collection %q under %s", collection, persistDir), err)
	}

	chunks, err := OpenChunkTable(chunksPath)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeCorruptIndex, err.Error(), err)
	}
	defer chunks.Close()

	info := &Info{Collection: collection, Dir: dir, FullText: -1}

	meta, err := chunks.Meta(ctx)
	if err != nil {
		return nil, err
	}
	info.Model = meta[MetaModel]
	info.Scheme = meta[MetaScheme]
	info.CreatedAt = meta[MetaCreatedAt]
	info.Dimensions, _ = strconv.Atoi(meta[MetaDimensions])

	ids, err := chunks.IDs(ctx)
	if err != nil {
		return nil, err
	}
	info.Chunks = len(ids)

	vectors, err := LoadVectorGraph(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeCorruptIndex, err.Error(), err)
	}
	defer vectors.Close()
	info.Vectors = vectors.Count()

	for _, id := range ids {
		if !vectors.Contains(id) {
			info.Missing = append(info.Missing, id)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, FullTextDir)); err == nil {
		ft, err := OpenFullText(filepath.Join(dir, FullTextDir))
		if err != nil {
			return nil, err
		}
		info.FullText, err = ft.Count()
		_ = ft.Close()
		if err != nil {
			return nil, err
		}
	}

	if sample > 0 {
		info.Sample, err = chunks.Head(ctx, sample)
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}
