package errfunc

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrExists   = errors.New("error function already registered")
	ErrNotFound = errors.New("error function not found")
)

type Constructor func() Func

var registry = struct {
	mu sync.RWMutex
	m  map[string]Constructor
}{
	m: make(map[string]Constructor),
}

func init() {
	initializeBuiltIns()
}

func initializeBuiltIns() {
	MustRegister(MeanSquaredError{}.Name(), func() Func { return MeanSquaredError{} })
	MustRegister(CrossEntropyError{}.Name(), func() Func { return CrossEntropyError{} })
}

func Register(name string, ctor Constructor) error {
	if name == "" {
		return errors.New("error function name is required")
	}
	if ctor == nil {
		return errors.New("error function constructor is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[name]; exists {
		return errors.Wrap(ErrExists, name)
	}
	registry.m[name] = ctor
	return nil
}

func MustRegister(name string, ctor Constructor) {
	if err := Register(name, ctor); err != nil {
		panic(err)
	}
}

// Get builds the named error function. An empty name selects mean squared error.
func Get(name string) (Func, error) {
	if name == "" {
		name = MeanSquaredError{}.Name()
	}
	registry.mu.RLock()
	ctor, ok := registry.m[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return ctor(), nil
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.mu.Lock()
	registry.m = make(map[string]Constructor)
	registry.mu.Unlock()
	initializeBuiltIns()
}
