package keywords

import (
	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/detect"
)

// registerAppHookLists announces the generic inspection lists backing
// the `proto:hook` header notation for every protocol exposing hooks.
func registerAppHookLists() {
	type hookDef struct {
		proto    string
		alproto  applayer.AppProto
		name     string
		dir      applayer.Direction
		progress int
	}

	var hooks []hookDef
	for _, proto := range []struct {
		name string
		id   applayer.AppProto
	}{
		{"http", applayer.HTTP},
		{"http1", applayer.HTTP1},
		{"http2", applayer.HTTP2},
		{"dns", applayer.DNS},
		{"tls", applayer.TLS},
		{"smb", applayer.SMB},
		{"ssh", applayer.SSH},
	} {
		hooks = append(hooks,
			hookDef{proto.name, proto.id, "request_started", applayer.ToServer, 0},
			hookDef{proto.name, proto.id, "response_started", applayer.ToClient, 0},
			hookDef{proto.name, proto.id, "request_complete", applayer.ToServer,
				applayer.CompletionStatus(proto.id, applayer.ToServer)},
			hookDef{proto.name, proto.id, "response_complete", applayer.ToClient,
				applayer.CompletionStatus(proto.id, applayer.ToClient)},
		)
		if p := applayer.Get(proto.id); p != nil {
			for _, st := range p.States {
				hooks = append(hooks, hookDef{proto.name, proto.id, st.Name, st.Direction, st.Progress})
			}
		}
	}

	for _, h := range hooks {
		detect.RegisterAppHookList(h.proto+":"+h.name, h.alproto, h.dir, h.progress)
	}
}

func init() {
	registerAppHookLists()
}
