package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorGraph holds a collection's embeddings in a coder/hnsw graph.
// Keys are assigned sequentially in insertion order, so a record's key is its
// position in the collection.
type VectorGraph struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64
	nextKey uint64

	closed bool
}

// vectorMeta is persisted next to the graph export.
type vectorMeta struct {
	IDMap      map[string]uint64
	NextKey    uint64
	Dimensions int
}

// NewVectorGraph returns an empty cosine-distance graph for vectors of the
// given length.
func NewVectorGraph(dims int) *VectorGraph {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25

	return &VectorGraph{
		graph: g,
		dims:  dims,
		idMap: make(map[string]uint64),
	}
}

// Add inserts vectors under ids. An id already present is an error; chunk
// ids are unique within a run.
func (v *VectorGraph) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrClosed
	}

	for i, vec := range vectors {
		if len(vec) != v.dims {
			return ErrDimensionMismatch{Expected: v.dims, Got: len(vec)}
		}
		if _, ok := v.idMap[ids[i]]; ok {
			return fmt.Errorf("duplicate vector id %s", ids[i])
		}
	}

	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		key := v.nextKey
		v.nextKey++
		v.graph.Add(hnsw.MakeNode(key, vec))
		v.idMap[id] = key
	}
	return nil
}

// Contains reports whether id has a vector.
func (v *VectorGraph) Contains(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.idMap[id]
	return ok
}

// Key returns the insertion position of id.
func (v *VectorGraph) Key(id string) (uint64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	k, ok := v.idMap[id]
	return k, ok
}

// Count returns the number of vectors.
func (v *VectorGraph) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Dimensions returns the vector length.
func (v *VectorGraph) Dimensions() int {
	return v.dims
}

// Save writes the graph to path and the id mapping to path+".meta", each via
// a temp file and rename.
func (v *VectorGraph) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	w := bufio.NewWriter(file)
	if err := v.graph.Export(w); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("flush graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename graph file: %w", err)
	}

	return writeVectorMeta(path+".meta", vectorMeta{
		IDMap:      v.idMap,
		NextKey:    v.nextKey,
		Dimensions: v.dims,
	})
}

func writeVectorMeta(path string, meta vectorMeta) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

func readVectorMeta(path string) (vectorMeta, error) {
	var meta vectorMeta

	file, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, fmt.Errorf("decode vector metadata: %w", err)
	}
	return meta, nil
}

// LoadVectorGraph reads a graph written by Save.
func LoadVectorGraph(path string) (*VectorGraph, error) {
	meta, err := readVectorMeta(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("load vector metadata: %w", err)
	}

	v := NewVectorGraph(meta.Dimensions)
	v.idMap = meta.IDMap
	if v.idMap == nil {
		v.idMap = make(map[string]uint64)
	}
	v.nextKey = meta.NextKey

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open graph file: %w", err)
	}
	defer file.Close()

	// Import needs an io.ByteReader.
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	return v, nil
}

// ReadVectorDimensions returns the dimension recorded next to a saved graph,
// or 0 when no graph has been saved at path.
func ReadVectorDimensions(path string) (int, error) {
	meta, err := readVectorMeta(path + ".meta")
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return meta.Dimensions, nil
}

// Close releases the graph.
func (v *VectorGraph) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.graph = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
