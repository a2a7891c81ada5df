package engines

import (
	"strings"

	"github.com/Schnaffon/suricata/alproto"
	"github.com/Schnaffon/suricata/detect"
)

// methodVerdict folds a signature's method precondition into whichever
// engine callback runs first for it: the method is known as soon as the
// request line arrives, so there is never a NEEDS_MORE_DATA case for it.
// ok reports whether dispatch should continue into the kind-specific
// check; when ok is false, verdict is already the final answer.
func methodVerdict(sig *Signature, tx *alproto.Transaction) (verdict detect.Verdict, ok bool) {
	if sig.method != "" && tx.Method != "" && tx.Method != sig.method {
		return detect.VerdictCantMatch, false
	}
	return 0, true
}

func asTx(tx detect.Transaction) *alproto.Transaction { return tx.(*alproto.Transaction) }

func uriCallback(sig detect.Signature, tx detect.Transaction, _ detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)
	if v, ok := methodVerdict(s, t); !ok {
		return v
	}
	if t.URI == "" {
		return detect.VerdictNeedsMoreData
	}
	if strings.Contains(t.URI, s.uriContains) {
		return detect.VerdictMatch
	}
	return detect.VerdictCantMatch
}

func headerCallback(sig detect.Signature, tx detect.Transaction, _ detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)
	if v, ok := methodVerdict(s, t); !ok {
		return v
	}
	var ua = t.Header["User-Agent"]
	if ua == "" {
		return detect.VerdictNeedsMoreData
	}
	if strings.Contains(ua, s.userAgentLike) {
		return detect.VerdictMatch
	}
	return detect.VerdictCantMatch
}

func cookieCallback(sig detect.Signature, tx detect.Transaction, _ detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)
	if v, ok := methodVerdict(s, t); !ok {
		return v
	}
	if t.Cookie == "" {
		return detect.VerdictNeedsMoreData
	}
	if strings.Contains(t.Cookie, s.cookieLike) {
		return detect.VerdictMatch
	}
	return detect.VerdictCantMatch
}

// bodyCallback is registered once per body-bearing engine kind and direction
// (EngineReqBody under to-server, EngineRespBody under to-client); it reads
// whichever direction it is actually invoked under.
func bodyCallback(sig detect.Signature, tx detect.Transaction, dir detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)
	if v, ok := methodVerdict(s, t); !ok {
		return v
	}
	if len(t.Body[dir]) == 0 {
		return detect.VerdictNeedsMoreData
	}
	return detect.VerdictMatch
}

// filenameCallback matches a signature's filename criterion against the
// most recently observed file, independent of whether that signature also
// asks for storage.
func filenameCallback(sig detect.Signature, tx detect.Transaction, _ detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)
	if v, ok := methodVerdict(s, t); !ok {
		return v
	}
	if len(t.Files) == 0 {
		return detect.VerdictNeedsMoreData
	}
	if t.Files[len(t.Files)-1].Name == s.filenameEquals {
		return detect.VerdictMatch
	}
	return detect.VerdictCantMatch
}

// filestoreCallback models Suricata's filestore sigmatch: it re-checks the
// signature's static preconditions (method, uri) and, once a file has
// arrived in the transaction, the filename — returning
// CANT_MATCH_FILESTORE rather than plain CANT_MATCH whenever this
// signature provably cannot ask for storage, so the File-Store Arbiter
// learns about it (spec.md §4.5).
func filestoreCallback(sig detect.Signature, tx detect.Transaction, dir detect.Direction, _ detect.Packet, _ detect.Flow) detect.Verdict {
	var s, t = sig.(*Signature), asTx(tx)

	if s.method != "" && t.Method != "" && t.Method != s.method {
		return detect.VerdictCantMatchFilestore
	}
	if s.uriContains != "" {
		if t.URI == "" {
			return detect.VerdictNeedsMoreData
		}
		if !strings.Contains(t.URI, s.uriContains) {
			return detect.VerdictCantMatchFilestore
		}
	}
	if len(t.Files) == 0 {
		return detect.VerdictNeedsMoreData
	}

	var f = &t.Files[len(t.Files)-1]
	if s.filenameEquals != "" && f.Name != s.filenameEquals {
		f.NoStore = true
		return detect.VerdictCantMatchFilestore
	}
	f.Stored = true
	return detect.VerdictMatch
}
