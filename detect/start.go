package detect

// StartDetection is invoked the first time a signature is considered
// against a flow (selected as a candidate by the out-of-scope first-pass
// matcher). It runs inspection over every transaction currently visible
// from the direction's inspect cursor, and over the signature's
// generic-flow and DCE-payload programs where it has them (spec.md §4.3).
//
// ruleGroupFileInterested is the File-Store Arbiter's denominator: the
// number of file-interested signatures applicable to the first pass
// matcher's current rule group. It is supplied by the caller because the
// rule group itself is assembled outside the core (spec.md §6).
func (e *Engine) StartDetection(
	thread *ThreadCtx,
	flow Flow,
	pkt Packet,
	sig Signature,
	dir Direction,
	ruleGroupFileInterested int,
) (alerted bool, err error) {
	if txAlerted, err := e.startTxScoped(thread, flow, pkt, sig, dir, ruleGroupFileInterested); err != nil {
		return false, err
	} else if txAlerted {
		alerted = true
	}

	if prog := sig.FlowProgram(); prog != nil {
		if e.startFlowScoped(thread, flow, pkt, sig, prog, dir) {
			alerted = true
		}
	}

	if dce := sig.DCEPayload(); dce != nil {
		if app := flow.AppState(); app != nil && (app.AlProto() == AlProtoSMB || app.AlProto() == AlProtoDCERPC) {
			if e.startDCEPayload(thread, flow, pkt, sig, dce, dir) {
				alerted = true
			}
		}
	}

	return alerted, nil
}

func (e *Engine) startTxScoped(
	thread *ThreadCtx,
	flow Flow,
	pkt Packet,
	sig Signature,
	dir Direction,
	ruleGroupFileInterested int,
) (alerted bool, err error) {
	if len(sig.Engines()) == 0 {
		return false, nil
	}

	var app = flow.AppState()
	if app == nil || !app.SupportsTxDetectState() {
		// spec.md §7: application-layer state not yet valid, or the
		// protocol has no per-transaction detect state at all. Treat as
		// "no state"; rely on a later packet.
		return false, nil
	}

	var (
		lastID  = app.TxCount()
		beginID = flow.InspectId(dir)
		genID   = e.snapshot().id
	)
	for id := beginID; id < lastID; id++ {
		tx, ok := app.Tx(id)
		if !ok {
			// spec.md §7: transaction object absent for an advertised id;
			// the parser caught up later. Skip and keep going.
			continue
		}

		var res = e.dispatch(sig, tx, dir, pkt, flow, 0)
		var isLast = id == lastID-1
		var complete = tx.Complete(dir)

		if res.outcome == outcomeAlert {
			e.enqueueAlert(thread, sig, pkt, tx.ID(), true, "start")
			alerted = true
			e.runPostMatch(thread, sig, flow, pkt, tx, true)
		}

		if res.fileNoMatch > 0 {
			var ts = e.ensureTxDetectState(tx)
			e.noteCantMatchFileInterested(thread, flow, tx, dir, ts, &res.flags, ruleGroupFileInterested)
		}

		if !(isLast && complete) {
			var ts = e.ensureTxDetectState(tx)
			e.park(ts.Store(dir), newTxRecordFrom(sig.Sid(), res.flags, genID), "start-tx", dir)
			e.logger.parked(sig, dir, "start-tx")
		}
	}

	return alerted, nil
}

func newTxRecordFrom(sid Sid, flags InspectFlags, genID uint64) Record {
	return Record{Sid: sid, Flags: flags, GenID: genID}
}

// ensureTxDetectState returns tx's detect state, lazily attaching a fresh
// one the first time any signature parks against it (spec.md §3 Data
// Model: "Transaction detect state ... created lazily the first time any
// signature parks on that transaction").
func (e *Engine) ensureTxDetectState(tx Transaction) *TxDetectState {
	if ts, ok := tx.DetectState(); ok {
		return ts
	}
	var ts = &TxDetectState{}
	tx.SetDetectState(ts)
	if got, ok := tx.DetectState(); !ok || got != ts {
		// spec.md §7: attachment failed after allocation is a programmer
		// error — the precondition is that the parser advertises support
		// for per-transaction detect state before we ever get here.
		e.invariantViolation("transaction did not retain its newly attached detect state")
	}
	return ts
}

func (e *Engine) startFlowScoped(thread *ThreadCtx, flow Flow, pkt Packet, sig Signature, prog FlowProgram, dir Direction) (alerted bool) {
	var genID = e.snapshot().id
	var fs = flow.EnsureFlowDetectState()
	if fs.Store(dir).Find(sig.Sid()) != nil {
		// Already parked for this signature/direction; the uniqueness
		// invariant means Start Path never runs twice for the same
		// signature on this flow, but guard against a misbehaving caller
		// rather than silently double-append.
		return false
	}

	var flags InspectFlags
	var suspended = false
	var step int
	for step = 0; step < prog.Len(); step++ {
		switch prog.Step(step, flow, dir) {
		case VerdictMatch:
			continue
		case VerdictCantMatch:
			flags = flags.withCantMatch().withFullInspect()
		default: // NEEDS_MORE_DATA, or an unrecognized verdict (spec.md §7)
			suspended = true
		}
		break
	}

	if suspended {
		e.park(fs.Store(dir), Record{Sid: sig.Sid(), Flags: flags, Cursor: Cursor{Sid: sig.Sid(), Step: step}, GenID: genID}, "start-flow", dir)
		e.logger.parked(sig, dir, "start-flow")
		return false
	}

	if !flags.cantMatch() && prog.Len() > 0 {
		flags = flags.withFullInspect()
		alerted = true
		e.enqueueAlert(thread, sig, pkt, 0, false, "start-flow")
		e.runPostMatch(thread, sig, flow, pkt, nil, false)
	} else {
		flags = flags.withFullInspect()
	}
	e.park(fs.Store(dir), Record{Sid: sig.Sid(), Flags: flags, GenID: genID}, "start-flow", dir)
	e.logger.parked(sig, dir, "start-flow")
	return alerted
}

// park appends r to store and updates the parked/chunk-allocation counters,
// the one place both Start Path call sites (tx-scoped, flow-scoped) funnel
// through so the metrics stay accurate regardless of which scope parked.
func (e *Engine) park(store *Store, r Record, scope string, dir Direction) {
	if store.Append(r) {
		e.metrics.chunksAllocated.Inc()
	}
	e.metrics.recordsParked.WithLabelValues(scope, dir.String()).Inc()
}

func (e *Engine) startDCEPayload(thread *ThreadCtx, flow Flow, pkt Packet, sig Signature, dce DCEMatcher, dir Direction) bool {
	var tx Transaction
	if app := flow.AppState(); app != nil && app.TxCount() > 0 {
		tx, _ = app.Tx(app.TxCount() - 1)
	}
	if !dce.Match(flow, tx, dir) {
		return false
	}
	var txID uint64
	var txIDSet bool
	if tx != nil {
		txID, txIDSet = tx.ID(), true
	}
	e.enqueueAlert(thread, sig, pkt, txID, txIDSet, "start-dce")
	e.runPostMatch(thread, sig, flow, pkt, tx, txIDSet)
	return true
}

func (e *Engine) runPostMatch(thread *ThreadCtx, sig Signature, flow Flow, pkt Packet, tx Transaction, txIDSet bool) {
	if e.postMatch == nil {
		return
	}
	// spec.md §5: the core sets the re-entry flag before calling
	// post-match code that may itself want the flow lock, and clears it
	// after, since the core is already holding that lock.
	thread.FlowLockedByMe = true
	e.postMatch.Run(thread, sig, flow, pkt, tx, txIDSet)
	thread.FlowLockedByMe = false
}

func (e *Engine) runFlowVars(thread *ThreadCtx, flow Flow) {
	if e.flowVarEngine != nil {
		e.flowVarEngine.ProcessFlowvarList(thread, flow)
	}
}
