package detect

import "github.com/Schnaffon/suricata/ops"

// engineLogger turns dispatcher decisions into structured log lines
// through ops.Logger, without introducing a bespoke log format of its own.
type engineLogger struct {
	l *ops.Logger
}

func newEngineLogger(l *ops.Logger) engineLogger {
	if l == nil {
		l = ops.New()
	}
	return engineLogger{l: l}
}

func (g engineLogger) parked(sig Signature, dir Direction, scope string) {
	g.l.With("sid", sig.Sid()).With("direction", dir.String()).With("scope", scope).
		Debugf("parked signature progress record")
}

func (g engineLogger) alerted(sig Signature, path string) {
	g.l.With("sid", sig.Sid()).With("path", path).
		Infof("signature alerted")
}

func (g engineLogger) fileStoreDisabled(flow Flow, tx Transaction, dir Direction) {
	g.l.With("tx", tx.ID()).With("direction", dir.String()).
		Infof("file storage disabled for transaction: no file-interested signature can still match")
}

func (g engineLogger) reconsidered(sig Signature, dir Direction) {
	g.l.With("sid", sig.Sid()).With("direction", dir.String()).
		Debugf("reopened full-inspect record after new file arrival")
}

func (g engineLogger) degraded(sig Signature, dir Direction, reason string) {
	g.l.With("sid", sig.Sid()).With("direction", dir.String()).
		Warnf("dispatch fell back to a conservative verdict: %s", reason)
}
