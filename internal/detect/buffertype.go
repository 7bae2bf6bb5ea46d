package detect

import (
	"fmt"

	"github.com/afonot/suricata/internal/applayer"
)

// BufferType describes one dynamically registered sticky-buffer type.
// Ids are dense and start at ListMax so they never collide with the
// classical lists.
type BufferType struct {
	ID   int
	Name string

	// Packet buffers inspect packet data, frame buffers a stream frame;
	// neither set means an app-layer buffer.
	Packet bool
	Frame  bool

	// SupportsMpm marks the buffer eligible for fast-pattern contents.
	SupportsMpm bool

	// Multi marks buffer types that may be instantiated several times
	// in one signature (e.g. per-header-name buffers).
	Multi bool

	// Setup runs once per signature using the buffer, after parsing.
	Setup func(e *Engine, s *Signature, id int)

	// Validate runs during buffer coherence checking.
	Validate func(s *Signature, b *InitDataBuffer) error
}

// AppInspectEngine registers one app-layer inspection engine: which
// buffer it serves, for which protocol, direction and progress.
type AppInspectEngine struct {
	SMList   int
	AlProto  applayer.AppProto
	Dir      applayer.Direction
	Progress int
}

// Process-wide registries, populated during init, read-only afterwards.
var (
	bufferTypes       []*BufferType
	bufferTypesByName = make(map[string]*BufferType)
	appInspectEngines []AppInspectEngine
)

// RegisterBufferType adds a sticky-buffer type and returns its id.
// Panics on duplicate names; that indicates a compile-time bug.
func RegisterBufferType(bt BufferType) int {
	if bt.Name == "" {
		panic("detect: buffer type name cannot be empty")
	}
	if _, exists := bufferTypesByName[bt.Name]; exists {
		panic(fmt.Sprintf("detect: buffer type %q already registered", bt.Name))
	}
	bt.ID = ListMax + len(bufferTypes)
	stored := bt
	bufferTypes = append(bufferTypes, &stored)
	bufferTypesByName[stored.Name] = &stored
	return stored.ID
}

// BufferTypeIDByName resolves a buffer name to its id, -1 when unknown.
func BufferTypeIDByName(name string) int {
	if bt, ok := bufferTypesByName[name]; ok {
		return bt.ID
	}
	return -1
}

// BufferTypeByID returns the registered type for an id, nil when out of
// range.
func BufferTypeByID(id int) *BufferType {
	idx := id - ListMax
	if idx < 0 || idx >= len(bufferTypes) {
		return nil
	}
	return bufferTypes[idx]
}

// RegisterAppInspectEngine announces an inspection engine for a buffer.
func RegisterAppInspectEngine(smList int, alproto applayer.AppProto, dir applayer.Direction, progress int) {
	appInspectEngines = append(appInspectEngines, AppInspectEngine{
		SMList:   smList,
		AlProto:  alproto,
		Dir:      dir,
		Progress: progress,
	})
}

// RegisterAppHookList registers the generic inspection list backing a
// `proto:hook` header, e.g. "dns:request_complete:generic".
func RegisterAppHookList(protoHook string, alproto applayer.AppProto, dir applayer.Direction, progress int) int {
	name := protoHook + ":generic"
	id := BufferTypeIDByName(name)
	if id < 0 {
		id = RegisterBufferType(BufferType{Name: name, SupportsMpm: true})
	}
	RegisterAppInspectEngine(id, alproto, dir, progress)
	return id
}
