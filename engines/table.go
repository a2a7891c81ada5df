package engines

import "github.com/Schnaffon/suricata/detect"

type tableKey struct {
	alproto detect.AlProto
	dir     detect.Direction
	kind    detect.EngineKind
}

// Table is a fixed, read-only (protocol, alproto, direction) -> engine-kind
// table resolving to the reference callbacks in matchers.go. One Table
// instance is shared by every signature; only the signature's declared
// Engines() order and static criteria vary per rule.
type Table struct {
	byKey map[tableKey]detect.EngineCallback
}

// NewHTTPTable builds the engine table for the AlProtoHTTP reference
// parser, wiring every engine kind this package's matchers implement.
func NewHTTPTable() *Table {
	var t = &Table{byKey: make(map[tableKey]detect.EngineCallback)}
	for _, dir := range []detect.Direction{detect.ToServer, detect.ToClient} {
		t.register(detect.AlProtoHTTP, dir, detect.EngineURI, uriCallback)
		t.register(detect.AlProtoHTTP, dir, detect.EngineHeader, headerCallback)
		t.register(detect.AlProtoHTTP, dir, detect.EngineCookie, cookieCallback)
		t.register(detect.AlProtoHTTP, dir, detect.EngineFilename, filenameCallback)
	}
	t.register(detect.AlProtoHTTP, detect.ToServer, detect.EngineFilestoreTS, filestoreCallback)
	t.register(detect.AlProtoHTTP, detect.ToClient, detect.EngineFilestoreTC, filestoreCallback)
	t.register(detect.AlProtoHTTP, detect.ToServer, detect.EngineReqBody, bodyCallback)
	t.register(detect.AlProtoHTTP, detect.ToClient, detect.EngineRespBody, bodyCallback)
	return t
}

func (t *Table) register(alproto detect.AlProto, dir detect.Direction, kind detect.EngineKind, cb detect.EngineCallback) {
	t.byKey[tableKey{alproto, dir, kind}] = cb
}

func (t *Table) Callback(alproto detect.AlProto, dir detect.Direction, kind detect.EngineKind) (detect.EngineCallback, bool) {
	cb, ok := t.byKey[tableKey{alproto, dir, kind}]
	return cb, ok
}
