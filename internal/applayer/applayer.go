// Package applayer provides the application-layer protocol registry the
// rule parser consults: protocol name lookup, supported IP protocols,
// transaction progress states and file-handling capabilities.
package applayer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/gopacket/layers"
)

// AppProto identifies a registered application-layer protocol.
type AppProto uint16

const (
	// Unknown means no app-layer protocol is set on a signature.
	Unknown AppProto = 0
	// Failed is returned when two protocols cannot be reconciled.
	Failed AppProto = 0xffff
)

// Direction of a transaction side, matching the flow directions used by
// the detect engine.
type Direction uint8

const (
	ToServer Direction = iota
	ToClient
)

// ProgressState names one transaction progress value for one direction.
type ProgressState struct {
	Name      string
	Direction Direction
	Progress  int
}

// Proto describes one registered application-layer protocol.
type Proto struct {
	ID   AppProto
	Name string

	// Enabled protocols can be used in signatures.
	Enabled bool

	// IPProtos the protocol runs over (TCP and/or UDP).
	IPProtos []layers.IPProtocol

	// CompletionToServer / CompletionToClient are the progress values at
	// which a transaction side is complete.
	CompletionToServer int
	CompletionToClient int

	// States are the named progress hooks the parser exposes.
	States []ProgressState

	// SupportsFiles is true when the protocol can extract files.
	SupportsFiles bool

	// CoveredBy points at a wider protocol that also matches this one,
	// e.g. http1 is covered by http.
	CoveredBy AppProto
}

// Registry is populated once during process start and read-only after.
var (
	registry = make(map[AppProto]*Proto)
	byName   = make(map[string]AppProto)
	nextID   = AppProto(1)
)

// Register adds a protocol to the registry. Panics on duplicates; this
// indicates a compile-time bug, same as the plugin registries.
func Register(p Proto) AppProto {
	name := strings.ToLower(p.Name)
	if name == "" {
		panic("applayer: protocol name cannot be empty")
	}
	if _, exists := byName[name]; exists {
		panic(fmt.Sprintf("applayer: protocol %q already registered", name))
	}
	p.ID = nextID
	nextID++
	stored := p
	registry[stored.ID] = &stored
	byName[name] = stored.ID
	return stored.ID
}

// GetProtoByName resolves a protocol name, Unknown if missing or disabled.
func GetProtoByName(name string) AppProto {
	id, ok := byName[strings.ToLower(name)]
	if !ok {
		return Unknown
	}
	if !registry[id].Enabled {
		return Unknown
	}
	return id
}

// Get returns the registered protocol, nil for Unknown/unregistered ids.
func Get(id AppProto) *Proto {
	return registry[id]
}

// ToString returns the registered name, or "unknown".
func ToString(id AppProto) string {
	if p := registry[id]; p != nil {
		return p.Name
	}
	return "unknown"
}

// IsValid reports whether id refers to a registered protocol.
func IsValid(id AppProto) bool {
	return id != Unknown && id != Failed && registry[id] != nil
}

// Equals reports whether sigProto accepts engineProto, taking protocol
// coverage into account: a signature for "http" also matches http1/http2.
func Equals(sigProto, engineProto AppProto) bool {
	if sigProto == engineProto {
		return true
	}
	ep := registry[engineProto]
	if ep != nil && ep.CoveredBy == sigProto && sigProto != Unknown {
		return true
	}
	sp := registry[sigProto]
	if sp != nil && sp.CoveredBy == engineProto && engineProto != Unknown {
		return true
	}
	return false
}

// Common reconciles two protocol assignments, Failed when impossible.
func Common(a, b AppProto) AppProto {
	if a == b {
		return a
	}
	if a == Unknown {
		return b
	}
	if b == Unknown {
		return a
	}
	// narrow a generic protocol to the specific one
	if pb := registry[b]; pb != nil && pb.CoveredBy == a {
		return b
	}
	if pa := registry[a]; pa != nil && pa.CoveredBy == b {
		return a
	}
	return Failed
}

// SupportedIPProtos ORs the protocol's IP protocols into the bitmap.
func SupportedIPProtos(id AppProto, bitmap []byte) {
	p := registry[id]
	if p == nil {
		return
	}
	for _, ipp := range p.IPProtos {
		bitmap[int(ipp)/8] |= 1 << (uint(ipp) % 8)
	}
}

// CompletionStatus returns the progress value at which the given
// direction of a transaction is complete.
func CompletionStatus(id AppProto, dir Direction) int {
	p := registry[id]
	if p == nil {
		return -1
	}
	if dir == ToServer {
		return p.CompletionToServer
	}
	return p.CompletionToClient
}

// StateIDByName resolves a named progress hook for one direction,
// returning -1 when the protocol does not expose it.
func StateIDByName(id AppProto, name string, dir Direction) int {
	p := registry[id]
	if p == nil {
		return -1
	}
	for _, st := range p.States {
		if st.Name == name && st.Direction == dir {
			return st.Progress
		}
	}
	return -1
}

// SupportsFiles reports whether the protocol can do file extraction.
func SupportsFiles(id AppProto) bool {
	p := registry[id]
	return p != nil && p.SupportsFiles
}

// ListProtos returns the sorted names of all registered protocols.
func ListProtos() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
