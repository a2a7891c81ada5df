package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Schnaffon/suricata/alproto"
	"github.com/Schnaffon/suricata/engines"
)

func newTestEngine(sigs ...*engines.Signature) (*Engine, *engines.AlertQueue) {
	var queue = &engines.AlertQueue{}
	var e = NewEngine(
		engines.NewHTTPTable(),
		engines.NewSignatureSet(sigs...),
		WithAlertQueue(queue),
		WithFileSubsystem(engines.FileSubsystem{}),
		WithFlowVarEngine(engines.NoopFlowVarEngine{}),
		WithPostMatch(engines.NoopPostMatch{}),
	)
	return e, queue
}

func TestDispatchAllMatchAlerts(t *testing.T) {
	var sig = engines.NewSignature(1,
		[]EngineKind{EngineHeader},
		engines.WithMethod("GET"), engines.WithUserAgentLike("Mozilla"))

	var tx = alproto.NewTransaction(0)
	tx.Method = "GET"
	tx.Header["User-Agent"] = "Mozilla/1.0"

	var app = alproto.NewState(AlProtoHTTP)
	var flow = alproto.NewFlow(app)

	var e, _ = newTestEngine(sig)
	var res = e.dispatch(sig, tx, ToServer, nil, flow, 0)
	require.Equal(t, outcomeAlert, res.outcome)
	require.True(t, res.flags.fullInspect())
	require.Equal(t, 1, res.totalMatches)
}

func TestDispatchCantMatchStopsIteration(t *testing.T) {
	var sig = engines.NewSignature(1,
		[]EngineKind{EngineHeader, EngineCookie},
		engines.WithMethod("POST"), engines.WithUserAgentLike("Mozilla"), engines.WithCookieLike("dummy"))

	var tx = alproto.NewTransaction(0)
	tx.Method = "GET" // mismatch: header engine folds in the method check

	var app = alproto.NewState(AlProtoHTTP)
	var flow = alproto.NewFlow(app)

	var e, _ = newTestEngine(sig)
	var res = e.dispatch(sig, tx, ToServer, nil, flow, 0)
	require.Equal(t, outcomeCantMatch, res.outcome)
	require.True(t, res.flags.cantMatch())
	require.True(t, res.flags.fullInspect())
	require.False(t, res.flags.engineDecided(EngineCookie), "iteration must stop at the first CANT_MATCH")
}

func TestDispatchNeedsMoreDataParks(t *testing.T) {
	var sig = engines.NewSignature(1,
		[]EngineKind{EngineHeader},
		engines.WithMethod("POST"), engines.WithUserAgentLike("Mozilla"))

	var tx = alproto.NewTransaction(0)
	tx.Method = "POST" // header not yet arrived

	var app = alproto.NewState(AlProtoHTTP)
	var flow = alproto.NewFlow(app)

	var e, _ = newTestEngine(sig)
	var res = e.dispatch(sig, tx, ToServer, nil, flow, 0)
	require.Equal(t, outcomePark, res.outcome)
	require.False(t, res.flags.fullInspect())
}

func TestDispatchSkipsAlreadyDecidedEngines(t *testing.T) {
	var sig = engines.NewSignature(1,
		[]EngineKind{EngineHeader, EngineCookie},
		engines.WithMethod("POST"), engines.WithUserAgentLike("Mozilla"), engines.WithCookieLike("dummy"))

	var tx = alproto.NewTransaction(0)
	tx.Method = "POST"
	tx.Header["User-Agent"] = "Mozilla/1.0"
	tx.Cookie = "dummy=1"

	var app = alproto.NewState(AlProtoHTTP)
	var flow = alproto.NewFlow(app)

	var e, _ = newTestEngine(sig)
	var flagsAfterHeader = InspectFlags(0).withEngine(EngineHeader)
	var res = e.dispatch(sig, tx, ToServer, nil, flow, flagsAfterHeader)
	require.Equal(t, outcomeAlert, res.outcome)
	require.Equal(t, 1, res.totalMatches, "only the cookie engine should have run")
}
