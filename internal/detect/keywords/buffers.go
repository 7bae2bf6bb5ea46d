package keywords

import (
	"strings"

	"github.com/afonot/suricata/internal/applayer"
	"github.com/afonot/suricata/internal/detect"
)

// FilestoreData is the context of one `filestore` match.
type FilestoreData struct{}

// Buffer ids of the built-in sticky buffers.
var (
	httpURIList      int
	httpStatCodeList int
	httpHeaderList   int
	httpHostList     int
	fileDataList     int
	fileNameList     int
	dnsQueryList     int
	tlsPduList       int
	tcpHdrList       int
)

func init() {
	httpURIList = detect.RegisterBufferType(detect.BufferType{
		Name:        "http.uri",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(httpURIList, applayer.HTTP1, applayer.ToServer, 2)

	httpStatCodeList = detect.RegisterBufferType(detect.BufferType{
		Name:        "http.stat_code",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(httpStatCodeList, applayer.HTTP1, applayer.ToClient, 2)

	httpHeaderList = detect.RegisterBufferType(detect.BufferType{
		Name:        "http.header",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(httpHeaderList, applayer.HTTP1, applayer.ToServer, 2)
	detect.RegisterAppInspectEngine(httpHeaderList, applayer.HTTP1, applayer.ToClient, 2)

	httpHostList = detect.RegisterBufferType(detect.BufferType{
		Name:        "http.host",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(httpHostList, applayer.HTTP1, applayer.ToServer, 2)

	fileDataList = detect.RegisterBufferType(detect.BufferType{
		Name:        "file.data",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(fileDataList, applayer.HTTP1, applayer.ToClient, 3)
	detect.RegisterAppInspectEngine(fileDataList, applayer.SMB, applayer.ToServer, 5)
	detect.RegisterAppInspectEngine(fileDataList, applayer.SMB, applayer.ToClient, 5)

	fileNameList = detect.RegisterBufferType(detect.BufferType{
		Name:        "file.name",
		SupportsMpm: true,
	})
	detect.RegisterAppInspectEngine(fileNameList, applayer.HTTP1, applayer.ToServer, 2)
	detect.RegisterAppInspectEngine(fileNameList, applayer.HTTP2, applayer.ToServer, 2)

	dnsQueryList = detect.RegisterBufferType(detect.BufferType{
		Name:        "dns.query",
		SupportsMpm: true,
		Multi:       true,
	})
	detect.RegisterAppInspectEngine(dnsQueryList, applayer.DNS, applayer.ToServer, 1)

	tlsPduList = detect.RegisterBufferType(detect.BufferType{
		Name:        "tls.pdu",
		SupportsMpm: true,
		Frame:       true,
	})

	tcpHdrList = detect.RegisterBufferType(detect.BufferType{
		Name:        "tcp.hdr",
		SupportsMpm: true,
		Packet:      true,
	})

	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "pkt_data",
		Desc:  "reset inspection to the packet payload",
		Flags: detect.KwNoOpt | detect.KwSupportFirewall,
		Setup: pktDataSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "file_data",
		Alias: "file.data",
		Desc:  "make following content matches apply to the file data buffer",
		Flags: detect.KwOptionalOpt | detect.KwSupportDir,
		Setup: fileDataSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "file.name",
		Desc:  "sticky buffer for the file name",
		Flags: detect.KwNoOpt,
		Setup: fileNameSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "filestore",
		Desc:  "store the matched file to disk",
		Flags: detect.KwNoOpt,
		Setup: filestoreSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "http.uri",
		Desc:  "sticky buffer for the normalized request URI",
		Flags: detect.KwNoOpt,
		Setup: stickySetup(&httpURIList, applayer.HTTP),
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "http.stat_code",
		Alias: "http_stat_code",
		Desc:  "sticky buffer for the response status code",
		Flags: detect.KwNoOpt,
		Setup: stickySetup(&httpStatCodeList, applayer.HTTP),
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "http.header",
		Alias: "http_header",
		Desc:  "sticky buffer for the normalized headers",
		Flags: detect.KwNoOpt,
		Setup: stickySetup(&httpHeaderList, applayer.HTTP),
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "http.host",
		Alias: "http_host",
		Desc:  "sticky buffer for the request host name",
		Flags: detect.KwNoOpt,
		Setup: stickySetup(&httpHostList, applayer.HTTP),
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "dns.query",
		Alias: "dns_query",
		Desc:  "sticky buffer for a DNS query name",
		Flags: detect.KwNoOpt,
		Setup: stickySetup(&dnsQueryList, applayer.DNS),
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "tcp.hdr",
		Desc:  "sticky buffer for the raw TCP header",
		Flags: detect.KwNoOpt,
		Setup: tcpHdrSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "frame",
		Desc:  "inspect a stream frame",
		Setup: frameSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:  "http_uri",
		Desc:  "modifier moving the previous content to the request URI buffer",
		Flags: detect.KwNoOpt,
		Setup: httpURIModifierSetup,
	})
	detect.RegisterKeyword(detect.KeywordEntry{
		Name:        "uricontent",
		Desc:        "match on the request URI",
		Flags:       detect.KwQuotesMandatory | detect.KwHandleNegation | detect.KwInfoDeprecated,
		Alternative: "content",
		Setup:       uricontentSetup,
	})
}

func pktDataSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	return detect.BufferSetActiveList(e, s, detect.ListNotSet)
}

// stickySetup builds the setup callback of a plain app-layer sticky
// buffer keyword: bind the protocol, then activate the buffer.
func stickySetup(list *int, alproto applayer.AppProto) func(*detect.Engine, *detect.Signature, *detect.SetupCtx) error {
	return func(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
		if err := s.SetAppProto(alproto); err != nil {
			return err
		}
		return detect.BufferSetActiveList(e, s, *list)
	}
}

func fileDataSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	if err := s.SetMultiAppProto([]applayer.AppProto{applayer.HTTP, applayer.SMB}); err != nil {
		return err
	}
	s.InitData.Flags |= detect.InitFileData
	return detect.BufferSetActiveList(e, s, fileDataList)
}

func fileNameSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	s.FileFlags |= detect.FileNeedFile | detect.FileNeedFilename
	return detect.BufferSetActiveList(e, s, fileNameList)
}

func filestoreSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	s.Flags |= detect.FlagFilestore
	s.FileFlags |= detect.FileNeedFile
	_, err := detect.AppendSigMatch(s, detect.LookupKeyword("filestore").ID,
		&FilestoreData{}, detect.ListPostmatch)
	return err
}

func tcpHdrSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	return detect.BufferSetActiveList(e, s, tcpHdrList)
}

func frameSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	name := strings.TrimSpace(opt.Value)
	list := detect.BufferTypeIDByName(name)
	if list < 0 {
		return parseErrf("unknown frame '" + name + "'")
	}
	if bt := detect.BufferTypeByID(list); bt == nil || !bt.Frame {
		return parseErrf("'" + name + "' is not a frame")
	}
	if strings.HasPrefix(name, "tls.") {
		if err := s.SetAppProto(applayer.TLS); err != nil {
			return err
		}
	}
	return detect.BufferSetActiveList(e, s, list)
}

func httpURIModifierSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	return detect.ContentModifierBufferSetup(e, s, opt.Value, httpURIList, applayer.HTTP)
}

// uricontentSetup keeps the deprecated uricontent working by parsing
// the pattern like content and placing it in the URI buffer.
func uricontentSetup(e *detect.Engine, s *detect.Signature, opt *detect.SetupCtx) error {
	pattern, err := parseContentPattern(opt.Value)
	if err != nil {
		return err
	}
	if err := s.SetAppProto(applayer.HTTP); err != nil {
		return err
	}
	cd := &detect.ContentData{Pattern: pattern}
	if opt.Negated {
		cd.Flags |= detect.ContentNegated
	}
	if err := detect.BufferSetActiveList(e, s, httpURIList); err != nil {
		return err
	}
	_, err = detect.AppendSigMatch(s, detect.ContentKeywordID(), cd, httpURIList)
	if err != nil {
		return err
	}
	// uricontent does not leave the buffer sticky
	return detect.BufferSetActiveList(e, s, detect.ListNotSet)
}
