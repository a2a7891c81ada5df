package engines

import "github.com/Schnaffon/suricata/detect"

// FlowInstruction is one step of a generic flow-match program: a
// predicate over the current flow state, resolved fresh at every dispatch
// so a resumed cursor never depends on a stale pointer (spec.md §9).
type FlowInstruction func(flow detect.Flow, dir detect.Direction) detect.Verdict

// FlowProgram is a fixed, ordered list of flow-match instructions, used by
// signatures that match across message-oriented protocols like SMB/DCERPC
// rather than against a single transaction (spec.md §4.3 step 2).
type FlowProgram struct {
	instructions []FlowInstruction
}

// NewFlowProgram returns a FlowProgram running instructions in order.
func NewFlowProgram(instructions ...FlowInstruction) *FlowProgram {
	return &FlowProgram{instructions: instructions}
}

func (p *FlowProgram) Len() int { return len(p.instructions) }

func (p *FlowProgram) Step(idx int, flow detect.Flow, dir detect.Direction) detect.Verdict {
	return p.instructions[idx](flow, dir)
}

// DCEPayloadMatcher is a single-shot matcher invoked only when the
// application-layer state is SMB or DCERPC (spec.md §4.3 step 3); it never
// parks, so it carries no resumable cursor.
type DCEPayloadMatcher struct {
	match func(flow detect.Flow, tx detect.Transaction, dir detect.Direction) bool
}

// NewDCEPayloadMatcher wraps a match predicate as a detect.DCEMatcher.
func NewDCEPayloadMatcher(match func(flow detect.Flow, tx detect.Transaction, dir detect.Direction) bool) *DCEPayloadMatcher {
	return &DCEPayloadMatcher{match: match}
}

func (m *DCEPayloadMatcher) Match(flow detect.Flow, tx detect.Transaction, dir detect.Direction) bool {
	return m.match(flow, tx, dir)
}
