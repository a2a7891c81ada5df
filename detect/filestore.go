package detect

// fileInterestedTotal is the rule group's denominator for the File-Store
// Arbiter: how many file-interested signatures are applicable to the
// current traffic. On the Start Path it is supplied by the caller per
// invocation (the first pass matcher's rule group, out of the core's
// scope); on the Continue Path it is read from the signature array of the
// record's generation (ruleGroupFileInterestedFor).
type fileInterestedTotal = int

// noteCantMatchFileInterested is the File-Store Arbiter's sole mutation
// path (spec.md §4.5): called whenever a file-interested signature's
// dispatch concludes CANT_MATCH_FILESTORE for (tx, dir). It increments
// filestore_cnt at most once per signature — a reconsideration triggered by
// a later file on the same transaction can call this again for the same
// sid, and spec.md §3 is explicit that such a signature "contributes
// exactly 1" regardless of how many times it re-resolves to
// CANT_MATCH_FILESTORE — and, the moment the count reaches
// ruleGroupFileInterested, flips FILE_STORE_DISABLED exactly once and
// tells the file subsystem to stop.
//
// flags is the caller's in-flight InspectFlags for this signature's record
// (res.flags on Start Path, r.Flags on Continue Path); noteCantMatchFileInterested
// sets flagFilestoreCounted on it so the one-time contribution survives
// into whatever gets parked or written back.
func (e *Engine) noteCantMatchFileInterested(
	thread *ThreadCtx,
	flow Flow,
	tx Transaction,
	dir Direction,
	ts *TxDetectState,
	flags *InspectFlags,
	ruleGroupFileInterested fileInterestedTotal,
) {
	if flags.filestoreCounted() {
		return
	}
	*flags = flags.withFilestoreCounted()
	ts.filestoreCnt[dir]++

	if ts.dirFlags[dir].has(DirFileStoreDisabled) {
		return // already disabled; monotone per spec.md §8.5
	}
	if ts.filestoreCnt[dir] < ruleGroupFileInterested {
		return
	}

	ts.setDirFlag(dir, DirFileStoreDisabled)
	e.metrics.fileStoreDisabled.Inc()
	if e.fileSubsystem != nil {
		e.fileSubsystem.DisableStoringForTransaction(flow, dir, tx.ID())
	}
	e.logger.fileStoreDisabled(flow, tx, dir)
}
