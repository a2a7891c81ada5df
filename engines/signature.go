// Package engines is a reference inspection-engine table and signature set:
// the (protocol, alproto, direction) -> engine-kind -> callback table and
// the read-only signature array the detect package is specified against
// (spec.md §6). Real URI/header/cookie/body/filename/filestore matchers
// live in the rule engine this core is extracted from; this package gives
// the engine something concrete to dispatch against for tests and the
// trace-replay CLI.
package engines

import "github.com/Schnaffon/suricata/detect"

// Signature is a read-only compiled rule. Only its declared engines and a
// handful of static match criteria are modeled — enough to drive the
// scenarios a stateful continuation engine needs to resume correctly, not
// a general rule grammar.
type Signature struct {
	sid     detect.Sid
	noAlert bool
	engines []detect.EngineKind

	method         string
	uriContains    string
	userAgentLike  string
	cookieLike     string
	filenameEquals string
	fileInterested bool

	flowProgram detect.FlowProgram
	dcePayload  detect.DCEMatcher
}

// Option configures a Signature at construction, the same functional-option
// shape detect.Engine itself is built with.
type Option func(*Signature)

func WithMethod(m string) Option          { return func(s *Signature) { s.method = m } }
func WithURIContains(sub string) Option   { return func(s *Signature) { s.uriContains = sub } }
func WithUserAgentLike(sub string) Option { return func(s *Signature) { s.userAgentLike = sub } }
func WithCookieLike(sub string) Option    { return func(s *Signature) { s.cookieLike = sub } }
func WithFilenameEquals(name string) Option {
	return func(s *Signature) { s.filenameEquals = name }
}
func WithNoAlert() Option { return func(s *Signature) { s.noAlert = true } }
func WithFlowProgram(p detect.FlowProgram) Option {
	return func(s *Signature) { s.flowProgram = p }
}
func WithDCEPayload(m detect.DCEMatcher) Option { return func(s *Signature) { s.dcePayload = m } }

// NewSignature builds a Signature with the given sid and declared engine
// order; engines are always attempted in this order (spec.md §4.3
// "Determinism").
func NewSignature(sid detect.Sid, engineOrder []detect.EngineKind, opts ...Option) *Signature {
	var s = &Signature{sid: sid, engines: engineOrder}
	for _, opt := range opts {
		opt(s)
	}
	for _, k := range engineOrder {
		if k == detect.EngineFilestoreTS || k == detect.EngineFilestoreTC {
			s.fileInterested = true
		}
	}
	return s
}

func (s *Signature) Sid() detect.Sid                 { return s.sid }
func (s *Signature) NoAlert() bool                   { return s.noAlert }
func (s *Signature) Engines() []detect.EngineKind    { return s.engines }
func (s *Signature) FileInterested() bool            { return s.fileInterested }
func (s *Signature) FlowProgram() detect.FlowProgram { return s.flowProgram }
func (s *Signature) DCEPayload() detect.DCEMatcher   { return s.dcePayload }

// SignatureSet is a flat, read-only array of signatures indexed by sid —
// the generation-swapped global rule context of spec.md §9.
type SignatureSet struct {
	bySid map[detect.Sid]*Signature
}

// NewSignatureSet builds a SignatureSet from sigs. Rebuilding a fresh
// SignatureSet (rather than mutating one in place) and swapping it in via
// Engine.Reload is how a rule reload is modeled (spec.md §9: "a new table
// is constructed, then swapped").
func NewSignatureSet(sigs ...*Signature) *SignatureSet {
	var set = &SignatureSet{bySid: make(map[detect.Sid]*Signature, len(sigs))}
	for _, s := range sigs {
		set.bySid[s.sid] = s
	}
	return set
}

func (set *SignatureSet) Get(sid detect.Sid) (detect.Signature, bool) {
	s, ok := set.bySid[sid]
	return s, ok
}

// FileInterestedCount is the File-Store Arbiter's denominator: how many
// signatures in this set can possibly ask for file storage.
func (set *SignatureSet) FileInterestedCount() int {
	var n int
	for _, s := range set.bySid {
		if s.fileInterested {
			n++
		}
	}
	return n
}
