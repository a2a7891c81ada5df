// Package detect implements the stateful signature continuation engine:
// given a signature that could not be fully decided on a single packet, it
// resumes evaluation on later packets of the same flow without re-running
// completed work, without missing updates, and without retaining state for
// signatures that can no longer match.
package detect

import "fmt"

// Direction is one side of a bidirectional flow.
type Direction uint8

const (
	ToServer Direction = iota
	ToClient
	numDirections
)

func (d Direction) String() string {
	if d == ToServer {
		return "to_server"
	}
	return "to_client"
}

// Sid is the compact signature identity assigned by the rule compiler. It
// indexes into the signature array; no signature body is ever copied into
// state.
type Sid uint32

// EngineKind identifies one inspection engine kind. Each kind owns exactly
// one bit in InspectFlags.
type EngineKind uint8

const (
	EngineURI EngineKind = iota
	EngineHeader
	EngineCookie
	EngineReqBody
	EngineRespBody
	EngineFilename
	EngineFilestoreTS
	EngineFilestoreTC
	EngineGenericFlow
	numEngineKinds
)

func (k EngineKind) String() string {
	switch k {
	case EngineURI:
		return "uri"
	case EngineHeader:
		return "header"
	case EngineCookie:
		return "cookie"
	case EngineReqBody:
		return "req_body"
	case EngineRespBody:
		return "resp_body"
	case EngineFilename:
		return "filename"
	case EngineFilestoreTS:
		return "filestore_ts"
	case EngineFilestoreTC:
		return "filestore_tc"
	case EngineGenericFlow:
		return "generic_flow"
	default:
		return fmt.Sprintf("engine(%d)", uint8(k))
	}
}

// isFileInspect reports whether a bit belongs to a file-interested engine.
func (k EngineKind) isFileInspect() bool {
	return k == EngineFilestoreTS || k == EngineFilestoreTC
}

// InspectFlags is the per-progress-record bitmap: one bit per engine kind
// that has returned a decisive verdict, plus three control bits.
type InspectFlags uint32

const (
	flagSigCantMatch InspectFlags = 1 << (iota + numEngineKinds)
	flagFullInspect
	// flagFilestoreCounted marks that this (tx,dir,sid) has already
	// contributed its one-time increment to TxDetectState.filestoreCnt
	// (spec.md §3: "A signature whose SIG_CANT_MATCH is set contributes
	// exactly 1 to the direction's filestore_cnt"). It survives a
	// reconsideration's clearing of the file engine bit, since the
	// contribution it guards happened once and must never be repeated for
	// the same signature even if a later file on the same transaction also
	// resolves to CANT_MATCH_FILESTORE.
	flagFilestoreCounted
)

func engineBit(k EngineKind) InspectFlags { return 1 << InspectFlags(k) }

func (f InspectFlags) engineDecided(k EngineKind) bool { return f&engineBit(k) != 0 }
func (f InspectFlags) cantMatch() bool                 { return f&flagSigCantMatch != 0 }
func (f InspectFlags) fullInspect() bool               { return f&flagFullInspect != 0 }
func (f InspectFlags) filestoreCounted() bool          { return f&flagFilestoreCounted != 0 }

func (f InspectFlags) withEngine(k EngineKind) InspectFlags { return f | engineBit(k) }
func (f InspectFlags) withCantMatch() InspectFlags          { return f | flagSigCantMatch }
func (f InspectFlags) withFullInspect() InspectFlags        { return f | flagFullInspect }
func (f InspectFlags) withFilestoreCounted() InspectFlags   { return f | flagFilestoreCounted }
func (f InspectFlags) clearEngine(k EngineKind) InspectFlags {
	return f &^ engineBit(k)
}
func (f InspectFlags) clearFullInspect() InspectFlags { return f &^ flagFullInspect }

// Verdict is the outcome of a single inspection engine call.
type Verdict uint8

const (
	VerdictMatch Verdict = iota
	VerdictCantMatch
	VerdictCantMatchFilestore
	VerdictNeedsMoreData
)

// DirFlags carries the per-direction state that lives alongside a state
// store: new-file events and the terminal file-store-disabled bit.
type DirFlags uint8

const (
	DirFileTSNew DirFlags = 1 << iota
	DirFileTCNew
	DirFileStoreDisabled
)

func (f DirFlags) has(bit DirFlags) bool { return f&bit != 0 }

// fileNewBitFor returns the FILE_*_NEW bit that corresponds to a direction's
// newly-arrived file.
func fileNewBitFor(dir Direction) DirFlags {
	if dir == ToServer {
		return DirFileTSNew
	}
	return DirFileTCNew
}

// fileEngineFor returns the filestore engine kind that corresponds to a
// direction.
func fileEngineFor(dir Direction) EngineKind {
	if dir == ToServer {
		return EngineFilestoreTS
	}
	return EngineFilestoreTC
}
