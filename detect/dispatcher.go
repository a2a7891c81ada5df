package detect

// dispatchOutcome is the Inspection Dispatcher's decision for one
// signature on one (transaction, direction) pass (spec.md §4.2 "Outcome").
type dispatchOutcome uint8

const (
	outcomeAlert dispatchOutcome = iota
	outcomeCantMatch
	outcomePark
)

// dispatchResult is everything the Start/Continue paths need to decide
// persistence and side effects after running the Dispatcher once.
type dispatchResult struct {
	flags        InspectFlags
	outcome      dispatchOutcome
	totalMatches int
	fileNoMatch  int // CANT_MATCH_FILESTORE verdicts seen this pass
}

// dispatch drives sig's declared engines, in declared order, skipping any
// whose bit is already set in flagsSoFar, and folds their verdicts per
// spec.md §4.2. It never mutates caller state directly; callers apply the
// result (park / alert / reconsider) themselves.
func (e *Engine) dispatch(
	sig Signature,
	tx Transaction,
	dir Direction,
	pkt Packet,
	flow Flow,
	flagsSoFar InspectFlags,
) dispatchResult {
	var (
		flags   = flagsSoFar
		alproto = flow.AppState().AlProto()
		engines = e.snapshot().engines
		result  dispatchResult
	)

	for _, kind := range sig.Engines() {
		if flags.engineDecided(kind) {
			continue
		}

		cb, ok := engines.Callback(alproto, dir, kind)
		if !ok {
			e.logger.degraded(sig, dir, "no callback registered for this engine kind")
			// Programmer error: a signature declared use of an engine the
			// table doesn't serve for this alproto/direction. Conservative
			// per spec.md §7's "unrecognized verdict" rule: treat as
			// NEEDS_MORE_DATA rather than crash the packet path.
			result.flags = flags
			result.outcome = outcomePark
			return result
		}

		switch verdict := cb(sig, tx, dir, pkt, flow); verdict {
		case VerdictMatch:
			flags = flags.withEngine(kind)
			result.totalMatches++
			continue

		case VerdictCantMatch:
			flags = flags.withEngine(kind).withCantMatch().withFullInspect()
			result.flags = flags
			result.outcome = outcomeCantMatch
			return result

		case VerdictCantMatchFilestore:
			flags = flags.withEngine(kind).withCantMatch().withFullInspect()
			result.fileNoMatch++
			result.flags = flags
			result.outcome = outcomeCantMatch
			return result

		case VerdictNeedsMoreData:
			result.flags = flags
			result.outcome = outcomePark
			return result

		default:
			// Unrecognized verdict: conservatively NEEDS_MORE_DATA
			// (spec.md §7).
			e.logger.degraded(sig, dir, "unrecognized verdict")
			result.flags = flags
			result.outcome = outcomePark
			return result
		}
	}

	// Every declared engine returned MATCH (or had already been decided).
	result.flags = flags.withFullInspect()
	if result.totalMatches > 0 {
		result.outcome = outcomeAlert
	} else {
		// No engine remained to run and none matched this call (every bit
		// was already decided coming in) — nothing new happened.
		result.outcome = outcomeCantMatch
	}
	return result
}

// enqueueAlert applies the signature's no-alert attribute and annotation
// policy (spec.md §4.2 "Alerting policy").
func (e *Engine) enqueueAlert(thread *ThreadCtx, sig Signature, pkt Packet, txID uint64, txIDSet bool, path string) {
	if sig.NoAlert() {
		return
	}
	e.metrics.alertsEnqueued.WithLabelValues(path).Inc()
	e.logger.alerted(sig, path)
	var ann = AnnotateStateMatch
	if txIDSet {
		ann |= AnnotateTx
	}
	if e.alertQueue != nil {
		e.alertQueue.PacketAlertAppend(thread, sig, pkt, txID, txIDSet, ann)
	}
}
