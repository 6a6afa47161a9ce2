package api

import (
	"time"
)

// SnapshotVariable is one evaluated expression recorded in a snapshot.
type SnapshotVariable struct {
	// Scope the expression was evaluated in.
	Scope EvalScope `json:"scope" yaml:"scope"`
	// Expr is the expression as the user typed it.
	Expr string `json:"expr" yaml:"expr"`
	// Variable is the loaded result.
	Variable Variable `json:"variable" yaml:"variable"`
}

// MemoryRange is a contiguous area of target memory recorded in a snapshot.
type MemoryRange struct {
	Addr uint64 `json:"addr" yaml:"addr"`
	Data []byte `json:"data" yaml:"data"`
}

// Contains reports whether the range covers count bytes starting at addr.
func (r *MemoryRange) Contains(addr uint64, count int) bool {
	return addr >= r.Addr && addr+uint64(count) <= r.Addr+uint64(len(r.Data))
}

// Snapshot is a serializable capture of a halted process taken through a
// live session. Opening one later replays the same read-only surface
// without the process, like examining a core dump.
type Snapshot struct {
	// ID uniquely identifies the capture.
	ID string `json:"id" yaml:"id"`
	// RecordedAt is the time the capture was taken.
	RecordedAt time.Time `json:"recordedAt" yaml:"recorded-at"`
	// Target names the inspected process.
	Target string `json:"target" yaml:"target"`
	// Pid of the inspected process at capture time.
	Pid int `json:"pid" yaml:"pid"`
	// LittleEndian records the byte order of the target.
	LittleEndian bool `json:"littleEndian" yaml:"little-endian"`

	State       DebuggerState      `json:"state" yaml:"state"`
	Goroutines  []Goroutine        `json:"goroutines" yaml:"goroutines"`
	Breakpoints []Breakpoint       `json:"breakpoints" yaml:"breakpoints"`
	Sources     []string           `json:"sources" yaml:"sources"`
	Functions   []string           `json:"functions" yaml:"functions"`
	Variables   []SnapshotVariable `json:"variables" yaml:"variables"`
	Memory      []MemoryRange      `json:"memory" yaml:"memory"`
}

// FindVariable returns the recorded evaluation of expr in scope, nil if the
// snapshot does not hold one.
func (s *Snapshot) FindVariable(scope EvalScope, expr string) *Variable {
	for i := range s.Variables {
		sv := &s.Variables[i]
		if sv.Expr == expr && sv.Scope == scope {
			return &sv.Variable
		}
	}
	return nil
}

// ReadMemory reads count bytes at addr from the recorded memory ranges.
func (s *Snapshot) ReadMemory(addr uint64, count int) ([]byte, bool) {
	for i := range s.Memory {
		r := &s.Memory[i]
		if r.Contains(addr, count) {
			off := addr - r.Addr
			return r.Data[off : off+uint64(count)], true
		}
	}
	return nil, false
}
