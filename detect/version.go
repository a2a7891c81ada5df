package detect

// InspectableState is HasInspectableState's three-way verdict (spec.md §6).
type InspectableState uint8

const (
	// StateNone: no state exists for this direction; nothing to resume.
	StateNone InspectableState = iota
	// StateInspectableUpdated: state exists and the application layer has
	// advanced since it was last evaluated.
	StateInspectableUpdated
	// StateInspectableUnchanged: state exists but alversion is identical
	// to what Continue Path last saw; a call would be a no-op.
	StateInspectableUnchanged
)

// HasInspectableState is the Version Guard (spec.md §4.4 step 1, §6). It
// short-circuits the packet path: the caller skips invoking ContinueDetection
// entirely when this returns StateNone or StateInspectableUnchanged and
// nothing else forces re-evaluation.
func HasInspectableState(flow Flow, dir Direction, alversion uint64) InspectableState {
	var hasTx, hasFlow bool

	if app := flow.AppState(); app != nil && app.SupportsTxDetectState() {
		for id := flow.InspectId(dir); id < app.TxCount(); id++ {
			if tx, ok := app.Tx(id); ok {
				if _, ok := tx.DetectState(); ok {
					hasTx = true
					break
				}
			}
		}
	}
	if fs, ok := flow.FlowDetectState(); ok && fs.Store(dir).Len() > 0 {
		hasFlow = true
	}

	if !hasTx && !hasFlow {
		return StateNone
	}

	if flow.AlVersion(dir) == alversion && !flow.EndOfFlow() {
		return StateInspectableUnchanged
	}
	return StateInspectableUpdated
}
