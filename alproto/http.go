// Package alproto is a minimal, in-process application-layer reference
// implementation of the detect package's parser boundary (detect.AppState,
// detect.Transaction, detect.Flow). Decoding real HTTP, SMB, or DCERPC
// traffic is out of scope for the engine itself (spec.md §1 Non-goals);
// this package exists so the engine can be exercised, traced, and tested
// end to end without a real parser wired in.
package alproto

import (
	"github.com/google/uuid"

	"github.com/Schnaffon/suricata/detect"
)

// Transaction is one request/response exchange. Completion is tracked
// independently per direction, the way a real HTTP transaction finishes
// parsing its request body before its response is fully read.
type Transaction struct {
	id     uint64
	done   [2]bool
	state  *detect.TxDetectState
	Method string
	URI    string
	Header map[string]string
	Cookie string
	Body   [2][]byte // indexed by detect.Direction

	// Files records, in arrival order, the names of files observed in the
	// request body (e.g. a multipart upload) and whether each was stored.
	Files []File
}

// File is one file attachment observed within a transaction's body.
type File struct {
	Name    string
	Stored  bool
	NoStore bool
}

// AddFile appends a newly observed file to t and, if a detect state is
// already parked against this transaction, notifies it so previously closed
// records get a chance to reconsider (spec.md §3 FILE_*_NEW).
func (t *Transaction) AddFile(name string, dir detect.Direction) {
	t.Files = append(t.Files, File{Name: name})
	if t.state != nil {
		t.state.NotifyNewFile(dir)
	}
}

// NewTransaction returns a Transaction with the given id and nothing else
// populated; callers set URI/Header/Body and completion as traffic arrives.
func NewTransaction(id uint64) *Transaction {
	return &Transaction{id: id, Header: map[string]string{}}
}

func (t *Transaction) ID() uint64 { return t.id }

func (t *Transaction) Complete(dir detect.Direction) bool { return t.done[dir] }

// SetComplete marks dir finished parsing; call once data for that side of
// the exchange has fully arrived.
func (t *Transaction) SetComplete(dir detect.Direction, complete bool) { t.done[dir] = complete }

func (t *Transaction) DetectState() (*detect.TxDetectState, bool) {
	return t.state, t.state != nil
}

func (t *Transaction) SetDetectState(state *detect.TxDetectState) { t.state = state }

// State is the per-flow application-layer state: an ordered list of
// transactions, append-only like the real parser's transaction list.
type State struct {
	proto detect.AlProto
	txs   []*Transaction
}

// NewState returns an empty State for proto.
func NewState(proto detect.AlProto) *State { return &State{proto: proto} }

func (s *State) AlProto() detect.AlProto { return s.proto }

func (s *State) TxCount() uint64 { return uint64(len(s.txs)) }

func (s *State) Tx(id uint64) (detect.Transaction, bool) {
	if id >= uint64(len(s.txs)) {
		return nil, false
	}
	return s.txs[id], true
}

func (s *State) SupportsTxDetectState() bool { return true }

// AppendTransaction starts a new transaction at the next id and returns it
// for the caller to populate as traffic arrives.
func (s *State) AppendTransaction() *Transaction {
	var tx = NewTransaction(uint64(len(s.txs)))
	s.txs = append(s.txs, tx)
	return tx
}

// Flow is a bidirectional connection carrying one State. It is not
// goroutine-safe; callers serialize access the way a real flow's owning
// thread holds its lock (spec.md §5).
type Flow struct {
	ID        uuid.UUID
	app       *State
	inspectID [2]uint64
	alVersion [2]uint64
	endOfFlow bool
	flowState *detect.FlowDetectState
}

// NewFlow returns a Flow over app, minting a fresh identifier the way a
// real flow table assigns one per connection. app may be nil for a flow
// whose application layer hasn't yet been identified.
func NewFlow(app *State) *Flow { return &Flow{ID: uuid.New(), app: app} }

func (f *Flow) AppState() detect.AppState {
	if f.app == nil {
		return nil
	}
	return f.app
}

func (f *Flow) InspectId(dir detect.Direction) uint64 { return f.inspectID[dir] }

func (f *Flow) SetInspectId(dir detect.Direction, id uint64) { f.inspectID[dir] = id }

func (f *Flow) AlVersion(dir detect.Direction) uint64 { return f.alVersion[dir] }

func (f *Flow) SetAlVersion(dir detect.Direction, version uint64) { f.alVersion[dir] = version }

func (f *Flow) EndOfFlow() bool { return f.endOfFlow }

// SetEndOfFlow marks the flow as having seen a protocol end-of-stream
// marker, disabling the Version Guard's short-circuit for good.
func (f *Flow) SetEndOfFlow(v bool) { f.endOfFlow = v }

func (f *Flow) FlowDetectState() (*detect.FlowDetectState, bool) {
	return f.flowState, f.flowState != nil
}

func (f *Flow) EnsureFlowDetectState() *detect.FlowDetectState {
	if f.flowState == nil {
		f.flowState = &detect.FlowDetectState{}
	}
	return f.flowState
}
