package detect

// This file defines the boundary the core is specified against (spec.md §6):
// the application-layer parser, the inspection-engine table, the signature
// array, and the side-effecting collaborators (alert queue, file subsystem,
// flow variable engine). The core only ever calls these; it never reaches
// past them into protocol decoding or rule compilation.

// AlProto names an application-layer protocol as the parser identifies it.
// The core treats it as an opaque key into the inspection-engine table.
type AlProto string

const (
	AlProtoUnknown AlProto = ""
	AlProtoHTTP    AlProto = "http"
	AlProtoSMB     AlProto = "smb"
	AlProtoDCERPC  AlProto = "dcerpc"
)

// Packet is deliberately opaque: the core never inspects packet bytes
// itself, only threads the value through to inspection-engine callbacks.
type Packet interface{}

// Transaction is one request/response unit of an application-layer
// protocol, identified by a monotonically increasing id per flow. Its
// transaction-scoped detect state is owned by the transaction itself, the
// way spec.md's Data Model describes, so the core never keeps a
// transaction by reference across calls.
type Transaction interface {
	ID() uint64
	// Complete reports whether this transaction has finished parsing in
	// the given direction (spec.md's GetCompletionStatus/GetStateProgress
	// collapsed into one boundary call; the core only needs "is there more
	// data coming for this transaction in this direction").
	Complete(dir Direction) bool
	// DetectState returns this transaction's lazily-created detect state,
	// or ok=false if none has been attached yet.
	DetectState() (state *TxDetectState, ok bool)
	// SetDetectState attaches detect state to the transaction. Called at
	// most once per transaction's lifetime, the first time a signature
	// parks against it.
	SetDetectState(state *TxDetectState)
}

// AppState is the application-layer parser's per-flow state: the
// transaction accounting the core reads but never mutates beyond the
// inspect cursor.
type AppState interface {
	AlProto() AlProto
	TxCount() uint64
	Tx(id uint64) (Transaction, bool)
	// SupportsTxDetectState reports whether this protocol's transactions
	// can carry per-transaction detect state at all. Legacy/generic
	// protocols that only support flow-scoped records return false.
	SupportsTxDetectState() bool
}

// Flow is the bidirectional connection the core is invoked under. Every
// method here is only ever called while the caller holds the flow's write
// lock (spec.md §5); the core performs no locking of its own.
type Flow interface {
	AppState() AppState
	// InspectId is the parser's current inspect cursor for dir: the lowest
	// transaction id the engine still considers pending.
	InspectId(dir Direction) uint64
	// SetInspectId advances the inspect cursor.
	SetInspectId(dir Direction, id uint64)
	// AlVersion is the parser's monotonically non-decreasing per-direction
	// version stamp.
	AlVersion(dir Direction) uint64
	// SetAlVersion records the version the Continue Path last evaluated
	// against, so a later call with the same version short-circuits via
	// the Version Guard.
	SetAlVersion(dir Direction, version uint64)
	// EndOfFlow reports whether the flow has seen a protocol end-of-stream
	// marker; once true, the version-guard short-circuit in
	// HasInspectableState never applies.
	EndOfFlow() bool
	// FlowDetectState returns the flow-owned, lazily-created state used by
	// legacy generic flow matchers, or ok=false if none exists yet.
	FlowDetectState() (state *FlowDetectState, ok bool)
	// EnsureFlowDetectState returns the existing flow-scoped state or
	// creates and attaches a new one.
	EnsureFlowDetectState() *FlowDetectState
}

// Signature is the compiled, read-only rule the core matches against. No
// signature body is copied into state; only its Sid is ever stored.
type Signature interface {
	Sid() Sid
	NoAlert() bool
	// Engines lists, in declared order, the transaction-scoped engine
	// kinds this signature uses. Dispatch always proceeds in this order.
	Engines() []EngineKind
	// FileInterested reports whether this signature can possibly ask for
	// file storage (participates in the File-Store Arbiter's denominator).
	FileInterested() bool
	// FlowProgram returns the signature's generic flow-match program, or
	// nil if it has none.
	FlowProgram() FlowProgram
	// DCEPayload returns the signature's single-shot DCE payload matcher,
	// or nil if it has none.
	DCEPayload() DCEMatcher
}

// FlowProgram is a signature's resumable, instruction-addressed flow-match
// program (spec.md §9: modeled as a (sid, instruction index) pair resolved
// at dispatch time rather than a raw pointer, so a reload can never leave a
// dangling cursor).
type FlowProgram interface {
	Len() int
	// Step evaluates the instruction at idx against the current flow
	// state in dir.
	Step(idx int, flow Flow, dir Direction) Verdict
}

// DCEMatcher is a single-shot matcher invoked only when the application
// layer state is SMB or DCERPC; it never parks.
type DCEMatcher interface {
	Match(flow Flow, tx Transaction, dir Direction) bool
}

// EngineCallback is one inspection engine's verdict function, as exposed by
// the engine table (protocol, alproto, direction) -> ordered engine list.
type EngineCallback func(sig Signature, tx Transaction, dir Direction, pkt Packet, flow Flow) Verdict

// EngineTable resolves an engine kind to its callback for a given alproto
// and direction. The core treats an absent entry as a programmer error: a
// signature must never declare use of an engine kind the table doesn't
// serve for that alproto/direction.
type EngineTable interface {
	Callback(alproto AlProto, dir Direction, kind EngineKind) (EngineCallback, bool)
}

// AlertAnnotation carries the bits the core attaches to an enqueued alert.
type AlertAnnotation uint8

const (
	AnnotateStateMatch AlertAnnotation = 1 << iota
	AnnotateTx
)

// ThreadCtx is per-thread scratch the core uses to implement the re-entry
// rule of spec.md §5: post-match actions that themselves take the flow lock
// must skip re-locking while the core is already holding it.
type ThreadCtx struct {
	FlowLockedByMe bool
}

// AlertQueue is the sink the core enqueues decided alerts into; it never
// renders output itself (spec.md §1 Non-goals).
type AlertQueue interface {
	PacketAlertAppend(thread *ThreadCtx, sig Signature, pkt Packet, txID uint64, txIDSet bool, annotation AlertAnnotation)
}

// FileSubsystem is notified once the File-Store Arbiter concludes no
// file-interested signature can still match a transaction/direction.
type FileSubsystem interface {
	DisableStoringForTransaction(flow Flow, dir Direction, txID uint64)
}

// FlowVarEngine processes per-flow variable side effects. The core calls it
// after every record inspection in the Continue Path, regardless of
// whether that inspection alerted.
type FlowVarEngine interface {
	ProcessFlowvarList(thread *ThreadCtx, flow Flow)
}

// PostMatch runs a signature's post-match packet actions. It is invoked
// under the flow-already-locked regime described in spec.md §5: the core
// sets thread.FlowLockedByMe before calling it and clears the flag after.
type PostMatch interface {
	Run(thread *ThreadCtx, sig Signature, flow Flow, pkt Packet, tx Transaction, txIDSet bool)
}
