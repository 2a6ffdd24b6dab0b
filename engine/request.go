package engine

import (
	"fmt"
	"sort"

	"github.com/govm-net/enginetest-support/types"
)

// NamedArg is a single runtime argument
type NamedArg struct {
	Name  string
	Value types.CLValue
}

// RuntimeArgs is an ordered list of named arguments
type RuntimeArgs []NamedArg

// NewRuntimeArgs encodes each value in args into a CLValue. Values that are
// already CLValues are kept as-is. Arguments are ordered by name.
func NewRuntimeArgs(args map[string]any) (RuntimeArgs, error) {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(RuntimeArgs, 0, len(args))
	for _, name := range names {
		var cv types.CLValue
		switch v := args[name].(type) {
		case types.CLValue:
			cv = v
		default:
			var err error
			if cv, err = types.NewCLValue(v); err != nil {
				return nil, fmt.Errorf("failed to encode argument %s: %w", name, err)
			}
		}
		out = append(out, NamedArg{Name: name, Value: cv})
	}
	return out, nil
}

// Get returns the value of the named argument
func (a RuntimeArgs) Get(name string) (types.CLValue, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return types.CLValue{}, false
}

// With returns a copy of a with name set to value
func (a RuntimeArgs) With(name string, value types.CLValue) RuntimeArgs {
	out := make(RuntimeArgs, 0, len(a)+1)
	for _, arg := range a {
		if arg.Name != name {
			out = append(out, arg)
		}
	}
	return append(out, NamedArg{Name: name, Value: value})
}

// ExecutableItem is the code a request runs
type ExecutableItem interface {
	isExecutableItem()
	String() string
}

// ModuleBytes runs session code. A registered native module with Name wins,
// then a wasm module stored in the repository under Name, then Code.
type ModuleBytes struct {
	Name string
	Code []byte
}

// StoredContractByHash calls an entry point of an installed contract
type StoredContractByHash struct {
	Hash       types.HashAddr
	EntryPoint string
}

// StoredContractByName calls an entry point of the contract stored under a
// named key of the caller's account.
type StoredContractByName struct {
	Name       string
	EntryPoint string
}

func (ModuleBytes) isExecutableItem()          {}
func (StoredContractByHash) isExecutableItem() {}
func (StoredContractByName) isExecutableItem() {}

func (m ModuleBytes) String() string {
	if m.Name != "" {
		return "ModuleBytes(" + m.Name + ")"
	}
	return fmt.Sprintf("ModuleBytes(%d bytes)", len(m.Code))
}

func (s StoredContractByHash) String() string {
	return fmt.Sprintf("StoredContractByHash(%s, %s)", s.Hash, s.EntryPoint)
}

func (s StoredContractByName) String() string {
	return fmt.Sprintf("StoredContractByName(%s, %s)", s.Name, s.EntryPoint)
}

// ExecuteRequest is a single deploy
type ExecuteRequest struct {
	Account    types.AccountHash
	Session    ExecutableItem
	Args       RuntimeArgs
	DeployHash [32]byte
	BlockTime  uint64
}
