package detect

// UpdateInspectTransactionId advances the parser's inspect cursor for dir.
// The core calls this itself once it deems every record for the current
// cursor transaction fully resolved and the transaction complete
// (spec.md §4.4, §6); it is also exported so a caller driving the parser
// directly (e.g. on transaction eviction) can advance the cursor the same
// way.
func UpdateInspectTransactionId(flow Flow, dir Direction) {
	flow.SetInspectId(dir, flow.InspectId(dir)+1)
}
