package detect

import "github.com/afonot/suricata/internal/applayer"

// HookType says which kind of execution point a signature is bound to.
type HookType uint8

const (
	HookNotSet HookType = iota
	HookPkt
	HookApp
)

func (t HookType) String() string {
	switch t {
	case HookPkt:
		return "pkt"
	case HookApp:
		return "app"
	default:
		return "not_set"
	}
}

// PktHook is a packet-level execution point.
type PktHook uint8

const (
	PktHookNotSet PktHook = iota
	PktHookFlowStart
	PktHookPreFlow
	PktHookPreStream
	PktHookAll
)

func pktHookFromString(s string) PktHook {
	switch s {
	case "flow_start":
		return PktHookFlowStart
	case "pre_flow":
		return PktHookPreFlow
	case "pre_stream":
		return PktHookPreStream
	case "all":
		return PktHookAll
	default:
		return PktHookNotSet
	}
}

func (h PktHook) String() string {
	switch h {
	case PktHookFlowStart:
		return "flow_start"
	case PktHookPreFlow:
		return "pre_flow"
	case PktHookPreStream:
		return "pre_stream"
	case PktHookAll:
		return "all"
	default:
		return "not_set"
	}
}

// AppHook binds a signature to an app-layer transaction progress value.
type AppHook struct {
	AlProto  applayer.AppProto
	Progress int
}

// SignatureHook is either unset, a packet hook, or an app hook with the
// generic inspection list registered for it.
type SignatureHook struct {
	Type HookType
	Pkt  PktHook
	App  AppHook

	// SMList is the generic app-hook list id, set for app hooks.
	SMList int
}

func setPktHook(h PktHook) SignatureHook {
	return SignatureHook{Type: HookPkt, Pkt: h}
}

func setAppHook(alproto applayer.AppProto, progress int) SignatureHook {
	return SignatureHook{Type: HookApp, App: AppHook{AlProto: alproto, Progress: progress}}
}
