package api

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNotSupported is returned by session primitives that the connected
// backend cannot provide.
var ErrNotSupported = errors.New("not supported by backend")

// APIVersion is the version of the wire API served and expected by this
// package.
const APIVersion = 1

// DebuggerState describes the state of the inspected process as reported by
// the host debug service.
type DebuggerState struct {
	// Running is true if the process is running and no other information can be collected.
	Running bool `json:"running"`
	// Exited indicates whether the inspected process has exited.
	Exited     bool `json:"exited"`
	ExitStatus int  `json:"exitStatus"`
	// StateID is incremented by the host every time the process halts. Two
	// states with the same StateID describe the same halt and evaluation
	// results between them are interchangeable.
	StateID uint64 `json:"stateID"`
	// CurrentThread is the currently selected debugger thread.
	CurrentThread *Thread `json:"currentThread,omitempty"`
	// SelectedGoroutine is the currently selected goroutine.
	SelectedGoroutine *Goroutine `json:"currentGoroutine,omitempty"`
	// When is a freeform description of the stop position, e.g. the name of
	// the breakpoint the host stopped at.
	When string `json:"when,omitempty"`

	// Filled by the client, indicates an error.
	Err error `json:"-" yaml:"-"`
}

// Thread is a thread within the inspected process.
type Thread struct {
	// ID is a unique identifier for the thread.
	ID int `json:"id"`
	// PC is the current program counter for the thread.
	PC uint64 `json:"pc"`
	// File is the file for the program counter.
	File string `json:"file"`
	// Line is the line number for the program counter.
	Line int `json:"line"`
	// Function is function information at the program counter. May be nil.
	Function *Function `json:"function,omitempty"`
	// GoroutineID is the ID of the goroutine running on this thread.
	GoroutineID int64 `json:"goroutineID"`
}

// Location holds program location information.
type Location struct {
	PC       uint64    `json:"pc"`
	File     string    `json:"file"`
	Line     int       `json:"line"`
	Function *Function `json:"function,omitempty"`
}

func (loc *Location) String() string {
	fname := "???"
	if loc.Function != nil {
		fname = loc.Function.Name
	}
	return fmt.Sprintf("%s:%d %s (%#v)", loc.File, loc.Line, fname, loc.PC)
}

// Function represents thread-scoped function information.
type Function struct {
	// Name is the function name.
	Name   string `json:"name"`
	Value  uint64 `json:"value"`
	Type   byte   `json:"type"`
	GoType uint64 `json:"goType"`
	// Optimized is true if the function was optimized.
	Optimized bool `json:"optimized"`
}

// Goroutine represents the information relevant to the inspection layer from
// the runtime's internal G structure.
type Goroutine struct {
	// ID is a unique identifier for the goroutine.
	ID int64 `json:"id"`
	// Current location of the goroutine.
	CurrentLoc Location `json:"currentLoc"`
	// Current location of the goroutine, excluding calls inside runtime.
	UserCurrentLoc Location `json:"userCurrentLoc"`
	// Location of the go instruction that started this goroutine.
	StartLoc Location `json:"startLoc"`
	// ID of the associated thread, zero if the goroutine is parked.
	ThreadID int `json:"threadID"`
}

// Breakpoint describes a breakpoint set in the host debugger. Gouge lists
// breakpoints but never creates or clears them.
type Breakpoint struct {
	// ID is a unique identifier for the breakpoint.
	ID int `json:"id"`
	// Name is the user defined name of the breakpoint.
	Name string `json:"name"`
	// Addr is the address of the breakpoint.
	Addr uint64 `json:"addr"`
	// File is the source file for the breakpoint.
	File string `json:"file"`
	// Line is a line in File for the breakpoint.
	Line int `json:"line"`
	// FunctionName is the name of the function at the breakpoint, may be
	// empty.
	FunctionName string `json:"functionName,omitempty"`
	// Disabled flag, signifying the state of the breakpoint.
	Disabled bool `json:"disabled"`
	// Number of times a breakpoint has been reached.
	TotalHitCount uint64 `json:"totalHitCount"`
}

// VariableFlags is the type of the Flags field of Variable.
type VariableFlags uint16

const (
	// VariableEscaped is set for local variables that escaped to the heap.
	VariableEscaped VariableFlags = 1 << iota
	// VariableShadowed is set for local variables that are shadowed by a
	// variable with the same name in a closer lexical scope.
	VariableShadowed
	// VariableReturnArgument is set for return arguments.
	VariableReturnArgument
	// VariableFakeAddress is set for variables that do not have a address in
	// the inspected process.
	VariableFakeAddress
)

// Variable describes a variable of the inspected process.
type Variable struct {
	// Name of the variable or struct member.
	Name string `json:"name"`
	// Address of the variable or struct member.
	Addr uint64 `json:"addr"`
	// Only the address field is filled (result of evaluating expressions like &<expr>).
	OnlyAddr bool `json:"onlyAddr"`
	// Type of the variable.
	Type string `json:"type"`
	// Type of the variable after resolving any typedefs.
	RealType string `json:"realType"`

	Flags VariableFlags `json:"flags"`

	Kind reflect.Kind `json:"kind"`

	// Strings have their length capped at the host's load limit, use Len for
	// the real length of a string. Function variables will store the name of
	// the function in this field.
	Value string `json:"value"`

	// Number of elements in a slice or map, number of bytes of the string
	// value before capping, number of fields of a struct.
	Len int64 `json:"len"`
	// Cap value for slices.
	Cap int64 `json:"cap"`

	// Address of the backing array for slices, address of the struct pointed
	// to for pointers.
	Base uint64 `json:"base"`

	// Children of this variable. The meaning of this field depends on the
	// Kind of the variable: elements for slices and arrays, fields for
	// structs, the pointed value for pointers, alternating keys and values
	// for maps.
	Children []Variable `json:"children"`

	// Unreadable addresses will have this field set to the error message.
	Unreadable string `json:"unreadable"`
}

// EvalScope is the scope an expression is evaluated in.
type EvalScope struct {
	// GoroutineID of the goroutine, -1 denotes the selected goroutine.
	GoroutineID int64 `json:"goroutineID"`
	// Frame is the stack frame index, 0 is the topmost frame.
	Frame int `json:"frame"`
	// DeferredCall selects a deferred call's argument frame instead, 0
	// disables this.
	DeferredCall int `json:"deferredCall"`
}

func (s EvalScope) String() string {
	if s.DeferredCall > 0 {
		return fmt.Sprintf("goroutine %d frame %d deferred %d", s.GoroutineID, s.Frame, s.DeferredCall)
	}
	return fmt.Sprintf("goroutine %d frame %d", s.GoroutineID, s.Frame)
}

// LoadConfig describes how an expression result should be loaded.
type LoadConfig struct {
	// FollowPointers requests pointers to be automatically dereferenced.
	FollowPointers bool `json:"followPointers" yaml:"follow-pointers"`
	// MaxVariableRecurse is how far to recurse when evaluating nested types.
	MaxVariableRecurse int `json:"maxVariableRecurse" yaml:"max-variable-recurse"`
	// MaxStringLen is the maximum number of bytes read from a string.
	MaxStringLen int `json:"maxStringLen" yaml:"max-string-len"`
	// MaxArrayValues is the maximum number of elements read from an array, slice or map.
	MaxArrayValues int `json:"maxArrayValues" yaml:"max-array-values"`
	// MaxStructFields is the maximum number of fields read from a struct, -1
	// will read all fields.
	MaxStructFields int `json:"maxStructFields" yaml:"max-struct-fields"`
}

// DefaultLoadConfig is used when a command does not specify otherwise.
var DefaultLoadConfig = LoadConfig{
	FollowPointers:     true,
	MaxVariableRecurse: 1,
	MaxStringLen:       64,
	MaxArrayValues:     64,
	MaxStructFields:    -1,
}

// PayloadLoadConfig loads variables for payload extraction: deep pointer
// following and a string cap high enough for typical wire payloads.
var PayloadLoadConfig = LoadConfig{
	FollowPointers:     true,
	MaxVariableRecurse: 2,
	MaxStringLen:       4 << 20,
	MaxArrayValues:     4 << 20,
	MaxStructFields:    -1,
}

type GetVersionIn struct {
}

type GetVersionOut struct {
	GougeVersion string `json:"gougeVersion"`
	APIVersion   int    `json:"apiVersion"`
}
