package nn

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrTransferExists   = errors.New("transfer already registered")
	ErrTransferNotFound = errors.New("transfer not found")
)

type TransferFunc func(x float64) float64

// DerivativeFunc returns d transfer/dx given the input x and the output y = f(x).
type DerivativeFunc func(x, y float64) float64

type Transfer struct {
	Name       string
	Func       TransferFunc
	Derivative DerivativeFunc
}

var transferRegistry = struct {
	mu sync.RWMutex
	m  map[string]Transfer
}{
	m: make(map[string]Transfer),
}

func init() {
	initializeBuiltInTransfers()
}

func initializeBuiltInTransfers() {
	MustRegisterTransfer(Transfer{Name: "identity", Func: func(x float64) float64 { return x }, Derivative: identityDerivative})
	MustRegisterTransfer(Transfer{Name: "relu", Func: relu, Derivative: reluDerivative})
	MustRegisterTransfer(Transfer{Name: "tanh", Func: math.Tanh, Derivative: tanhDerivative})
	MustRegisterTransfer(Transfer{Name: "sigmoid", Func: sigmoid, Derivative: sigmoidDerivative})
	MustRegisterTransfer(Transfer{Name: "gaussian", Func: gaussian, Derivative: gaussianDerivative})
	MustRegisterTransfer(Transfer{Name: "softplus", Func: softplus, Derivative: softplusDerivative})
}

func RegisterTransfer(transfer Transfer) error {
	if transfer.Name == "" {
		return errors.New("transfer name is required")
	}
	if transfer.Func == nil || transfer.Derivative == nil {
		return errors.Errorf("transfer %s needs a function and a derivative", transfer.Name)
	}

	transferRegistry.mu.Lock()
	defer transferRegistry.mu.Unlock()

	if _, exists := transferRegistry.m[transfer.Name]; exists {
		return errors.Wrap(ErrTransferExists, transfer.Name)
	}
	transferRegistry.m[transfer.Name] = transfer
	return nil
}

func MustRegisterTransfer(transfer Transfer) {
	if err := RegisterTransfer(transfer); err != nil {
		panic(err)
	}
}

func GetTransfer(name string) (Transfer, error) {
	transferRegistry.mu.RLock()
	transfer, ok := transferRegistry.m[name]
	transferRegistry.mu.RUnlock()
	if !ok {
		return Transfer{}, errors.Wrap(ErrTransferNotFound, name)
	}
	return transfer, nil
}

func ListTransfers() []string {
	transferRegistry.mu.RLock()
	defer transferRegistry.mu.RUnlock()

	names := make([]string, 0, len(transferRegistry.m))
	for name := range transferRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetTransferRegistryForTests() {
	transferRegistry.mu.Lock()
	transferRegistry.m = make(map[string]Transfer)
	transferRegistry.mu.Unlock()
	initializeBuiltInTransfers()
}
