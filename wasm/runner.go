// Package wasm runs session code compiled to WebAssembly on wazero.
//
// Modules import their host API from the "env" module and export a single
// entry point, "call" by default. Each run uses a fresh runtime that is closed
// when the run returns.
package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"

	"github.com/govm-net/enginetest-support/types"
)

// DefaultEntryPoint is the export invoked when a run names none
const DefaultEntryPoint = "call"

var (
	ErrEmptyCode         = errors.New("wasm code cannot be empty")
	ErrCodeTooLarge      = errors.New("wasm code too large")
	ErrInvalidModule     = errors.New("invalid wasm module")
	ErrMissingEntryPoint = errors.New("missing entry point")
	ErrTrap              = errors.New("wasm trap")
)

// RevertError reports that the module called casper_revert
type RevertError struct {
	Status types.ApiError
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("reverted with %s", e.Status)
}

// Host is the engine side of the env module
type Host interface {
	// PutKey stores key under name in the caller's named keys
	PutKey(name string, key types.Key) error
	// NewDictionary creates a dictionary and stores its seed under name
	NewDictionary(name string) (types.URef, error)
}

// Config holds runner limits
type Config struct {
	MaxCodeSize      uint64 // Maximum module size in bytes
	MemoryLimitPages uint32 // Maximum linear memory in 64KiB pages
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxCodeSize:      1024 * 1024, // 1MB
		MemoryLimitPages: 64,
	}
}

// Runner executes wasm session code
type Runner struct {
	config Config
}

// NewRunner creates a runner; zero limits fall back to DefaultConfig
func NewRunner(config Config) *Runner {
	def := DefaultConfig()
	if config.MaxCodeSize == 0 {
		config.MaxCodeSize = def.MaxCodeSize
	}
	if config.MemoryLimitPages == 0 {
		config.MemoryLimitPages = def.MemoryLimitPages
	}
	return &Runner{config: config}
}

// Run instantiates code and calls entryPoint. A revert is returned as
// *RevertError; a failing host call is returned as-is.
func (r *Runner) Run(ctx context.Context, code []byte, host Host, entryPoint string) error {
	if len(code) == 0 {
		return ErrEmptyCode
	}
	if uint64(len(code)) > r.config.MaxCodeSize {
		return fmt.Errorf("%w: %d > %d", ErrCodeTooLarge, len(code), r.config.MaxCodeSize)
	}
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
		WithMemoryLimitPages(r.config.MemoryLimitPages).
		WithCloseOnContextDone(true))
	defer runtime.Close(ctx)

	call := &hostCall{host: host}
	if err := call.instantiateEnv(ctx, runtime); err != nil {
		return fmt.Errorf("failed to instantiate env module: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}

	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("session").
		WithStartFunctions())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidModule, err)
	}

	fn := mod.ExportedFunction(entryPoint)
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrMissingEntryPoint, entryPoint)
	}

	_, err = fn.Call(ctx)
	switch {
	case call.revert != nil:
		return call.revert
	case call.hostErr != nil:
		return call.hostErr
	case err != nil:
		return fmt.Errorf("%w: %v", ErrTrap, err)
	}
	return nil
}

// hostCall carries the outcome of host functions for a single run
type hostCall struct {
	host    Host
	revert  *RevertError
	hostErr error
}

func (c *hostCall) instantiateEnv(ctx context.Context, runtime wazero.Runtime) error {
	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithParameterNames("status").
		WithFunc(c.casperRevert).
		Export("casper_revert").
		NewFunctionBuilder().
		WithParameterNames("name_ptr", "name_size", "key_ptr", "key_size").
		WithResultNames("result").
		WithFunc(c.casperPutKey).
		Export("casper_put_key").
		NewFunctionBuilder().
		WithParameterNames("name_ptr", "name_size").
		WithResultNames("result").
		WithFunc(c.casperNewDictionary).
		Export("casper_new_dictionary").
		NewFunctionBuilder().
		WithParameterNames("text_ptr", "text_size").
		WithFunc(c.casperPrint).
		Export("casper_print").
		Instantiate(ctx)
	return err
}

// abort stops execution of the module from inside a host function
func abort(status uint32) {
	panic(sys.NewExitError(status))
}

func (c *hostCall) casperRevert(_ context.Context, _ api.Module, status uint32) {
	c.revert = &RevertError{Status: types.ApiErrorFromCode(status)}
	abort(status)
}

// status maps a host error to the code returned to the module. Errors that
// are not API errors abort the run.
func (c *hostCall) status(err error) uint32 {
	if err == nil {
		return 0
	}
	var apiErr types.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	c.hostErr = err
	abort(1)
	return 0
}

func (c *hostCall) casperPutKey(_ context.Context, m api.Module, namePtr, nameSize, keyPtr, keySize uint32) uint32 {
	name, ok := read(m, namePtr, nameSize)
	if !ok {
		return types.ApiErrorRead.Code
	}
	raw, ok := read(m, keyPtr, keySize)
	if !ok {
		return types.ApiErrorRead.Code
	}
	key, err := types.KeyFromBytes(raw)
	if err != nil {
		return types.ApiErrorDeserialize.Code
	}
	return c.status(c.host.PutKey(string(name), key))
}

func (c *hostCall) casperNewDictionary(_ context.Context, m api.Module, namePtr, nameSize uint32) uint32 {
	name, ok := read(m, namePtr, nameSize)
	if !ok {
		return types.ApiErrorRead.Code
	}
	_, err := c.host.NewDictionary(string(name))
	return c.status(err)
}

func (c *hostCall) casperPrint(_ context.Context, m api.Module, textPtr, textSize uint32) {
	text, ok := read(m, textPtr, textSize)
	if !ok {
		return
	}
	slog.Info("Contract print", "text", string(text))
}

func read(m api.Module, ptr, size uint32) ([]byte, bool) {
	mem := m.Memory()
	if mem == nil {
		return nil, false
	}
	b, ok := mem.Read(ptr, size)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}
