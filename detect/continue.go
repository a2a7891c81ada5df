package detect

// ContinueDetection is invoked on later packets of a flow already carrying
// parked state. It walks every parked record per direction, replaying
// inspection only on engines not yet decided, advances the transaction
// cursor, and finalizes file-store decisions (spec.md §4.4).
//
// alversion is the application layer's current per-direction version, as
// observed by the caller for this packet.
func (e *Engine) ContinueDetection(
	thread *ThreadCtx,
	flow Flow,
	pkt Packet,
	dir Direction,
	alversion uint64,
) error {
	if flow.AlVersion(dir) == alversion && !flow.EndOfFlow() {
		// Version Guard (spec.md §4.4 step 1): nothing has changed since
		// the last pass, so there is nothing to re-inspect.
		return nil
	}

	var app = flow.AppState()
	if app != nil && app.SupportsTxDetectState() {
		e.continueTxScoped(thread, flow, pkt, app, dir)
	}

	if fs, ok := flow.FlowDetectState(); ok {
		fs.Store(dir).Each(func(_ int, r *Record) {
			e.doInspectFlowRule(thread, flow, pkt, r, dir)
			e.runFlowVars(thread, flow)
		})
	}

	flow.SetAlVersion(dir, alversion)
	return nil
}

func (e *Engine) continueTxScoped(thread *ThreadCtx, flow Flow, pkt Packet, app AppState, dir Direction) {
	var (
		beginID = flow.InspectId(dir)
		lastID  = app.TxCount()
	)
	if lastID == 0 {
		return
	}

	for id := beginID; id < lastID; id++ {
		tx, ok := app.Tx(id)
		if !ok {
			// spec.md §7: parser hasn't caught up to this id yet.
			continue
		}

		var isLast = id == lastID-1
		var complete = tx.Complete(dir)
		var resolved = true

		if ts, ok := tx.DetectState(); ok {
			ts.store[dir].Each(func(_ int, r *Record) {
				e.doInspectItem(thread, flow, pkt, tx, ts, r, dir)
				e.runFlowVars(thread, flow)
			})
			resolved = allRecordsResolved(ts.Store(dir))
			// Every currently-parked record has now had its one chance to
			// reconsider this file arrival (spec.md §3: "since the record
			// was last evaluated"); clear the bit so it doesn't re-trigger
			// records that already acted on it.
			ts.clearDirFlag(dir, fileNewBitFor(dir))
		}
		_ = isLast // last-transaction status only matters to the
		// out-of-scope first-pass matcher's re-selection bitmap; the loop
		// bound above already stops the right side of the range.

		if complete && resolved {
			UpdateInspectTransactionId(flow, dir)
		}

		if !complete {
			// Stop advancing past a transaction still in progress: its
			// records were evaluated above, but later transactions are
			// not yet safe to cross into this call.
			break
		}
	}
}

// allRecordsResolved reports whether every parked record in store has
// reached a terminal state (FULL_INSPECT, which the dispatcher sets on
// both the alert and SIG_CANT_MATCH outcomes) with no pending reconsideration.
func allRecordsResolved(store *Store) bool {
	var resolved = true
	store.Each(func(_ int, r *Record) {
		if !r.Flags.fullInspect() {
			resolved = false
		}
	})
	return resolved
}

// doInspectItem resumes a single transaction-scoped progress record
// (spec.md §4.4 "DoInspectItem"), resolving it against the exact rule
// generation it was parked under rather than whatever is live now.
func (e *Engine) doInspectItem(
	thread *ThreadCtx,
	flow Flow,
	pkt Packet,
	tx Transaction,
	ts *TxDetectState,
	r *Record,
	dir Direction,
) {
	gen, ok := e.generationByID(r.GenID)
	if !ok {
		// This record's generation has fully retired (superseded and then
		// evicted from the bounded LRU); nothing left to resume it against.
		return
	}
	sig, ok := gen.signatures.Get(r.Sid)
	if !ok {
		// The signature was retired by a reload between parking and now;
		// nothing left to resume.
		return
	}

	if r.Flags.fullInspect() {
		if e.reconsiderOnNewFile(ts, r, dir) {
			e.logger.reconsidered(sig, dir)
			// fall through to re-dispatch below with the reopened flags
		} else {
			return
		}
	} else if r.Flags.cantMatch() {
		if e.reconsiderOnNewFile(ts, r, dir) {
			e.logger.reconsidered(sig, dir)
		} else {
			return
		}
	}

	var res = e.dispatch(sig, tx, dir, pkt, flow, r.Flags)
	r.Flags = res.flags

	if res.outcome == outcomeAlert {
		e.enqueueAlert(thread, sig, pkt, tx.ID(), true, "continue")
		e.runPostMatch(thread, sig, flow, pkt, tx, true)
	}
	if res.fileNoMatch > 0 {
		e.noteCantMatchFileInterested(thread, flow, tx, dir, ts, &r.Flags, ruleGroupFileInterestedFor(gen, dir))
	}
}

// reconsiderOnNewFile implements the shared "reconsider on new file" rule
// used by both the FULL_INSPECT and SIG_CANT_MATCH branches of
// DoInspectItem: if the record carries a file-inspect bit and the
// direction has seen a new file since, reopen it for re-evaluation.
func (e *Engine) reconsiderOnNewFile(ts *TxDetectState, r *Record, dir Direction) bool {
	var fileBit = fileEngineFor(dir)
	if !r.Flags.engineDecided(fileBit) {
		return false
	}
	if !ts.DirFlags(dir).has(fileNewBitFor(dir)) {
		return false
	}
	r.Flags = r.Flags.clearEngine(fileBit).clearFullInspect()
	e.metrics.recordsReconsidered.WithLabelValues(dir.String()).Inc()
	return true
}

// ruleGroupFileInterestedFor resolves the File-Store Arbiter's denominator
// for a resumed record. Unlike Start Path (which receives it fresh from the
// first-pass matcher per packet), Continue Path resumes records parked
// under a possibly-earlier rule group; the denominator is carried on the
// generation's signature array so it stays consistent with whichever rule
// set produced it.
func ruleGroupFileInterestedFor(gen *generation, _ Direction) int {
	return gen.signatures.FileInterestedCount()
}

// doInspectFlowRule resumes a single flow-scoped progress record (spec.md
// §4.4 "DoInspectFlowRule").
func (e *Engine) doInspectFlowRule(thread *ThreadCtx, flow Flow, pkt Packet, r *Record, dir Direction) {
	gen, ok := e.generationByID(r.GenID)
	if !ok {
		return
	}
	sig, ok := gen.signatures.Get(r.Sid)
	if !ok {
		return
	}
	if r.Flags.fullInspect() || r.Flags.cantMatch() {
		return
	}

	var prog = sig.FlowProgram()
	if prog == nil {
		return
	}

	var step = r.Cursor.Step
	var matched int
	for ; step < prog.Len(); step++ {
		switch prog.Step(step, flow, dir) {
		case VerdictMatch:
			matched++
			continue
		case VerdictCantMatch:
			r.Flags = r.Flags.withCantMatch().withFullInspect()
			r.Cursor.Step = step
			return
		default: // NEEDS_MORE_DATA, or unrecognized (spec.md §7)
			r.Cursor.Step = step
			return
		}
	}

	r.Cursor.Step = step
	if matched > 0 {
		r.Flags = r.Flags.withFullInspect()
		e.enqueueAlert(thread, sig, pkt, 0, false, "continue-flow")
		e.runPostMatch(thread, sig, flow, pkt, nil, false)
	} else {
		r.Flags = r.Flags.withFullInspect()
	}
}
