package detect

// Record is a progress record: the unit of resumption for one signature on
// one (transaction-or-flow, direction). Cursor is only meaningful for
// flow-scoped records; transaction-scoped records leave it at zero. GenID
// pins the record to the rule generation it was parked under, so a reload
// landing between park and resume can't silently resolve the sid against a
// different rule set than the one that decided its flags so far (spec.md
// §9).
type Record struct {
	Sid    Sid
	Flags  InspectFlags
	Cursor Cursor
	GenID  uint64
}

// Cursor resolves a flow-scoped record's resumption point: the next
// flow-match instruction to try. It is a (sid, index) pair rather than a
// pointer into the program itself, so an engine reload — which swaps the
// signature array and rebuilds programs — can never leave it dangling; the
// Continue Path always re-resolves FlowProgram via the signature array of
// the record's own generation (GenID) before stepping it (spec.md §9).
type Cursor struct {
	Sid  Sid
	Step int
}
