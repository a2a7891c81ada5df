package detect

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Schnaffon/suricata/ops"
)

// SignatureSet is the global, process-wide signature array (spec.md §6):
// read-only during packet processing, indexed by Sid. No signature body is
// ever copied out of it into detect state.
type SignatureSet interface {
	Get(sid Sid) (Signature, bool)
	// FileInterestedCount is the File-Store Arbiter's denominator for the
	// rule group this signature array was built for: how many signatures
	// in it are file-interested. Start Path receives this fresh from the
	// first-pass matcher per call; Continue Path resumes records that may
	// have parked under an earlier rule group, so it reads the
	// denominator off the signature array the record's sid still resolves
	// against instead.
	FileInterestedCount() int
}

// generation bundles one atomically-swapped snapshot of the rule context:
// the engine table and signature array built together for one reload
// (spec.md §9: "a new table is constructed, then swapped").
type generation struct {
	id         uint64
	engines    EngineTable
	signatures SignatureSet
}

// Engine is the stateful signature continuation engine. One Engine serves
// every flow concurrently; all per-flow mutation happens on Store/TxDetectState/
// FlowDetectState values reached through the Flow/Transaction the caller
// passes in, under the caller's flow lock (spec.md §5) — Engine itself holds
// no per-flow state.
type Engine struct {
	gen atomic.Pointer[generation]

	// retired keeps a bounded number of superseded generations reachable
	// so a packet evaluation that read its generation id just before a
	// concurrent reload can still resolve the engine table and signature
	// array it started with, instead of racing the swap (spec.md §5:
	// "Global rule context ... swapped atomically on reload"). Bounded
	// with an LRU rather than kept forever, since each reload replaces the
	// whole rule set and old generations exist only to drain in-flight
	// work.
	retired   *lru.Cache[uint64, *generation]
	reloadMu  sync.Mutex
	nextGenID uint64

	alertQueue    AlertQueue
	fileSubsystem FileSubsystem
	flowVarEngine FlowVarEngine
	postMatch     PostMatch

	metrics *metrics
	logger  engineLogger
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithAlertQueue(q AlertQueue) Option       { return func(e *Engine) { e.alertQueue = q } }
func WithFileSubsystem(f FileSubsystem) Option { return func(e *Engine) { e.fileSubsystem = f } }
func WithFlowVarEngine(v FlowVarEngine) Option { return func(e *Engine) { e.flowVarEngine = v } }
func WithPostMatch(p PostMatch) Option         { return func(e *Engine) { e.postMatch = p } }
func WithLogger(l *ops.Logger) Option          { return func(e *Engine) { e.logger = newEngineLogger(l) } }

// NewEngine builds an Engine bound to an initial engine table and signature
// array, the rule context a first reload will later swap atomically.
func NewEngine(engines EngineTable, signatures SignatureSet, opts ...Option) *Engine {
	var retired, _ = lru.New[uint64, *generation](4)
	var e = &Engine{
		retired: retired,
		metrics: newMetrics(),
		logger:  newEngineLogger(nil),
	}
	e.gen.Store(&generation{id: 0, engines: engines, signatures: signatures})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics exposes the engine's prometheus counters for a caller's scrape
// endpoint.
func (e *Engine) Metrics() prometheus.Gatherer { return e.metrics.Gatherer() }

func (e *Engine) snapshot() *generation { return e.gen.Load() }

// Reload swaps in a newly-built engine table and signature array
// atomically, retaining the previous generation briefly for any in-flight
// evaluation that captured it. Callers must follow this with
// ResetLiveTransactions for every live flow (spec.md §4.6): the Reset
// interface invalidates parked state before the old generation is allowed
// to retire for good.
func (e *Engine) Reload(engines EngineTable, signatures SignatureSet) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	var old = e.gen.Load()
	e.nextGenID++
	var next = &generation{id: e.nextGenID, engines: engines, signatures: signatures}
	e.gen.Store(next)
	if old != nil {
		e.retired.Add(old.id, old)
	}
}

// generationByID resolves a previously-observed generation id, checking
// the live generation first and falling back to the retired cache.
func (e *Engine) generationByID(id uint64) (*generation, bool) {
	if cur := e.gen.Load(); cur.id == id {
		return cur, true
	}
	return e.retired.Get(id)
}
