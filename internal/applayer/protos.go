package applayer

import "github.com/google/gopacket/layers"

// Built-in protocol set. Progress values follow each protocol's parser
// state machine; the completion value is the last state of a side.
var (
	HTTP  AppProto
	HTTP1 AppProto
	HTTP2 AppProto
	DNS   AppProto
	TLS   AppProto
	SMB   AppProto
	SSH   AppProto
)

func init() {
	HTTP = Register(Proto{
		Name:               "http",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 100,
		CompletionToClient: 100,
		SupportsFiles:      true,
	})
	HTTP1 = Register(Proto{
		Name:               "http1",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 100,
		CompletionToClient: 100,
		States: []ProgressState{
			{Name: "request_line", Direction: ToServer, Progress: 1},
			{Name: "request_headers", Direction: ToServer, Progress: 2},
			{Name: "request_body", Direction: ToServer, Progress: 3},
			{Name: "response_line", Direction: ToClient, Progress: 1},
			{Name: "response_headers", Direction: ToClient, Progress: 2},
			{Name: "response_body", Direction: ToClient, Progress: 3},
		},
		SupportsFiles: true,
	})
	HTTP2 = Register(Proto{
		Name:               "http2",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 100,
		CompletionToClient: 100,
		SupportsFiles:      true,
	})
	DNS = Register(Proto{
		Name:     "dns",
		Enabled:  true,
		IPProtos: []layers.IPProtocol{layers.IPProtocolTCP, layers.IPProtocolUDP},
		// request done / response done
		CompletionToServer: 1,
		CompletionToClient: 1,
	})
	TLS = Register(Proto{
		Name:               "tls",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 5,
		CompletionToClient: 5,
		States: []ProgressState{
			{Name: "client_hello_done", Direction: ToServer, Progress: 1},
			{Name: "server_hello_done", Direction: ToClient, Progress: 1},
			{Name: "handshake_done", Direction: ToClient, Progress: 4},
		},
	})
	SMB = Register(Proto{
		Name:               "smb",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 10,
		CompletionToClient: 10,
		SupportsFiles:      true,
	})
	SSH = Register(Proto{
		Name:               "ssh",
		Enabled:            true,
		IPProtos:           []layers.IPProtocol{layers.IPProtocolTCP},
		CompletionToServer: 2,
		CompletionToClient: 2,
	})

	registry[HTTP1].CoveredBy = HTTP
	registry[HTTP2].CoveredBy = HTTP
}
