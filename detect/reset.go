package detect

// ResetLiveTransactions is the engine-reload hook (spec.md §4.6): for every
// live transaction in the flow, it zeroes the transaction detect state's
// counters and flags in both directions, freeing the Dispatcher to
// re-evaluate against the new rule set. It must be called for every live
// flow after Engine.Reload swaps in a new rule context, before the old
// generation is allowed to retire for good (spec.md §9).
func (e *Engine) ResetLiveTransactions(flow Flow) {
	var app = flow.AppState()
	if app == nil {
		return
	}
	for id := uint64(0); id < app.TxCount(); id++ {
		tx, ok := app.Tx(id)
		if !ok {
			continue
		}
		if ts, ok := tx.DetectState(); ok {
			ts.reset()
		}
	}
}
