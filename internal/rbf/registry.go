package rbf

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"learning/internal/som"
)

var (
	ErrClustererExists   = errors.New("clusterer already registered")
	ErrClustererNotFound = errors.New("clusterer not found")
)

// ClustererLoader restores a clustering model from its serialized blob.
type ClustererLoader func(blob string) (Clusterer, error)

var clustererRegistry = struct {
	mu sync.RWMutex
	m  map[string]ClustererLoader
}{
	m: make(map[string]ClustererLoader),
}

func init() {
	initializeBuiltInClusterers()
}

func initializeBuiltInClusterers() {
	MustRegisterClusterer(som.Kind, func(blob string) (Clusterer, error) {
		clustering, err := som.Unserialize(blob)
		if err != nil {
			return nil, err
		}
		return clustering, nil
	})
}

// RegisterClusterer makes a clustering model kind restorable inside a
// serialized network. kind must match the kind its blobs are encoded with.
func RegisterClusterer(kind string, load ClustererLoader) error {
	if kind == "" {
		return errors.New("clusterer kind is required")
	}
	if load == nil {
		return errors.Errorf("clusterer %s needs a loader", kind)
	}

	clustererRegistry.mu.Lock()
	defer clustererRegistry.mu.Unlock()

	if _, exists := clustererRegistry.m[kind]; exists {
		return errors.Wrap(ErrClustererExists, kind)
	}
	clustererRegistry.m[kind] = load
	return nil
}

func MustRegisterClusterer(kind string, load ClustererLoader) {
	if err := RegisterClusterer(kind, load); err != nil {
		panic(err)
	}
}

func getClusterer(kind string) (ClustererLoader, error) {
	clustererRegistry.mu.RLock()
	load, ok := clustererRegistry.m[kind]
	clustererRegistry.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrClustererNotFound, kind)
	}
	return load, nil
}

func ListClusterers() []string {
	clustererRegistry.mu.RLock()
	defer clustererRegistry.mu.RUnlock()

	kinds := make([]string, 0, len(clustererRegistry.m))
	for kind := range clustererRegistry.m {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func resetClustererRegistryForTests() {
	clustererRegistry.mu.Lock()
	clustererRegistry.m = make(map[string]ClustererLoader)
	clustererRegistry.mu.Unlock()
	initializeBuiltInClusterers()
}
