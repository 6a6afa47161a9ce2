// Package snapshot records and replays the inspectable state of a paused
// process. A snapshot file holds the process state, the listings and a set
// of evaluated expressions. Opening one serves the same read-only surface
// as a live session, like examining a core dump.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/go-gouge/gouge/pkg/logflags"
	"github.com/go-gouge/gouge/service"
	"github.com/go-gouge/gouge/service/api"
)

// memoryWindow is how many bytes of target memory are recorded around each
// evaluated variable.
const memoryWindow = 256

// Open reads a snapshot from path.
func Open(path string) (*api.Snapshot, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(fh)
}

// Read decodes a snapshot.
func Read(r io.Reader) (*api.Snapshot, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	snap := &api.Snapshot{}
	if err := yaml.Unmarshal(buf, snap); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %v", err)
	}
	if snap.ID == "" {
		return nil, fmt.Errorf("malformed snapshot: no id")
	}
	return snap, nil
}

// WriteFile writes a snapshot to path.
func WriteFile(path string, snap *api.Snapshot) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(fh, snap); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// Write encodes a snapshot.
func Write(w io.Writer, snap *api.Snapshot) error {
	buf, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// Record captures the state of the session behind client along with the
// evaluation of exprs. Listings a backend does not support are recorded
// empty.
func Record(client service.Client, exprs []string, cfg api.LoadConfig) (*api.Snapshot, error) {
	log := logflags.SnapshotLogger()

	state, err := client.GetState(true)
	if err != nil {
		return nil, err
	}
	if state.Running {
		return nil, fmt.Errorf("cannot record a snapshot while the target is running")
	}

	snap := &api.Snapshot{
		ID:           uuid.New().String(),
		RecordedAt:   time.Now(),
		Target:       client.TargetName(),
		Pid:          client.ProcessPid(),
		LittleEndian: true,
		State:        *state,
	}

	if gs, err := client.ListGoroutines(); err == nil {
		snap.Goroutines = gs
	} else {
		log.Debugf("goroutines not recorded: %v", err)
	}
	if bps, err := client.ListBreakpoints(); err == nil {
		snap.Breakpoints = bps
	} else {
		log.Debugf("breakpoints not recorded: %v", err)
	}
	if srcs, err := client.ListSources(""); err == nil {
		snap.Sources = srcs
	} else {
		log.Debugf("sources not recorded: %v", err)
	}
	if fns, err := client.ListFunctions(""); err == nil {
		snap.Functions = fns
	} else {
		log.Debugf("functions not recorded: %v", err)
	}

	scope := api.EvalScope{GoroutineID: -1}
	for _, expr := range exprs {
		v, err := client.EvalVariable(scope, expr, cfg)
		if err != nil {
			return nil, fmt.Errorf("recording %q: %v", expr, err)
		}
		snap.Variables = append(snap.Variables, api.SnapshotVariable{Scope: scope, Expr: expr, Variable: *v})

		if v.Addr == 0 {
			continue
		}
		mem, littleEndian, err := client.ExamineMemory(v.Addr, memoryWindow)
		if err != nil {
			log.Debugf("memory at %#x not recorded: %v", v.Addr, err)
			continue
		}
		snap.LittleEndian = littleEndian
		snap.Memory = append(snap.Memory, api.MemoryRange{Addr: v.Addr, Data: mem})
	}

	log.Debugf("recorded snapshot %s of %s: %d variables, %d memory ranges", snap.ID, snap.Target, len(snap.Variables), len(snap.Memory))
	return snap, nil
}
