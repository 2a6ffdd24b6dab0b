package engine

import (
	"errors"
	"fmt"

	"github.com/govm-net/enginetest-support/types"
	"github.com/govm-net/enginetest-support/wasm"
)

var (
	ErrGenesisAlreadyRun = errors.New("genesis already run")
	ErrGenesisFailed     = errors.New("genesis failed")
	ErrNothingToCommit   = errors.New("nothing to commit")
)

// ErrorKind classifies an execution failure
type ErrorKind int

const (
	ErrorKindExec ErrorKind = iota + 1
	ErrorKindAuthorization
	ErrorKindRootNotFound
	ErrorKindInvalidRequest
	ErrorKindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindExec:
		return "Exec"
	case ErrorKindAuthorization:
		return "Authorization"
	case ErrorKindRootNotFound:
		return "RootNotFound"
	case ErrorKindInvalidRequest:
		return "InvalidRequest"
	case ErrorKindStorage:
		return "Storage"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the outcome of a failed execution request
type Error struct {
	Kind   ErrorKind
	Exec   *ExecError // set for ErrorKindExec
	Detail string
}

func (e *Error) Error() string {
	if e.Kind == ErrorKindExec && e.Exec != nil {
		return "execution error: " + e.Exec.Error()
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// GoString renders the canonical debug form, e.g. Exec(Revert(User(1)))
func (e *Error) GoString() string {
	switch {
	case e.Kind == ErrorKindExec && e.Exec != nil:
		return fmt.Sprintf("Exec(%#v)", e.Exec)
	case e.Kind == ErrorKindAuthorization:
		return "Authorization"
	case e.Detail != "":
		return fmt.Sprintf("%s(%q)", e.Kind, e.Detail)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e.Exec == nil {
		return nil
	}
	return e.Exec
}

// ExecErrorKind classifies a failure inside session or contract code
type ExecErrorKind int

const (
	ExecRevert ExecErrorKind = iota + 1
	ExecNoSuchMethod
	ExecKeyNotFound
	ExecInvalidContract
	ExecForgedReference
	ExecInterpreter
)

// ExecError is a failure raised while running code
type ExecError struct {
	Kind   ExecErrorKind
	Api    types.ApiError // set for ExecRevert
	Name   string         // entry point, named key or contract key
	Detail string         // ExecInterpreter message
}

// Revert builds the error a session returns to revert with code
func Revert(code types.ApiError) *ExecError {
	return &ExecError{Kind: ExecRevert, Api: code}
}

func (e *ExecError) Error() string {
	switch e.Kind {
	case ExecRevert:
		return "reverted with " + e.Api.Error()
	case ExecNoSuchMethod:
		return "no such method: " + e.Name
	case ExecKeyNotFound:
		return "key not found: " + e.Name
	case ExecInvalidContract:
		return "invalid contract: " + e.Name
	case ExecForgedReference:
		return "forged reference: " + e.Name
	case ExecInterpreter:
		return "interpreter error: " + e.Detail
	}
	return fmt.Sprintf("exec error %d", int(e.Kind))
}

func (e *ExecError) GoString() string {
	switch e.Kind {
	case ExecRevert:
		return fmt.Sprintf("Revert(%#v)", e.Api)
	case ExecNoSuchMethod:
		return fmt.Sprintf("NoSuchMethod(%q)", e.Name)
	case ExecKeyNotFound:
		return fmt.Sprintf("KeyNotFound(%q)", e.Name)
	case ExecInvalidContract:
		return fmt.Sprintf("InvalidContract(%s)", e.Name)
	case ExecForgedReference:
		return fmt.Sprintf("ForgedReference(%s)", e.Name)
	case ExecInterpreter:
		return fmt.Sprintf("Interpreter(%q)", e.Detail)
	}
	return fmt.Sprintf("ExecError(%d)", int(e.Kind))
}

// toExecError maps whatever a session returned onto an ExecError
func toExecError(err error) *ExecError {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr
	}
	var revert *wasm.RevertError
	if errors.As(err, &revert) {
		return Revert(revert.Status)
	}
	var apiErr types.ApiError
	if errors.As(err, &apiErr) {
		return Revert(apiErr)
	}
	return &ExecError{Kind: ExecInterpreter, Detail: err.Error()}
}
