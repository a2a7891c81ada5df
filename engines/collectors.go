package engines

import (
	"github.com/Schnaffon/suricata/alproto"
	"github.com/Schnaffon/suricata/detect"
)

// Alert is one enqueued alert, as a test or trace-replay caller observes it.
type Alert struct {
	Sid        detect.Sid
	TxID       uint64
	TxIDSet    bool
	Annotation detect.AlertAnnotation
}

// AlertQueue is an in-memory detect.AlertQueue collecting every enqueued
// alert in order, standing in for the real alert-output subsystem (spec.md
// §1 Non-goals: the core never produces alert output format itself).
type AlertQueue struct {
	Alerts []Alert
}

func (q *AlertQueue) PacketAlertAppend(_ *detect.ThreadCtx, sig detect.Signature, _ detect.Packet, txID uint64, txIDSet bool, ann detect.AlertAnnotation) {
	q.Alerts = append(q.Alerts, Alert{Sid: sig.Sid(), TxID: txID, TxIDSet: txIDSet, Annotation: ann})
}

// FileSubsystem marks every file observed on a transaction as not-stored
// once the File-Store Arbiter concludes no file-interested
// signature can still match it.
type FileSubsystem struct{}

func (FileSubsystem) DisableStoringForTransaction(flow detect.Flow, dir detect.Direction, txID uint64) {
	var app = flow.AppState()
	if app == nil {
		return
	}
	tx, ok := app.Tx(txID)
	if !ok {
		return
	}
	var t = tx.(*alproto.Transaction)
	for i := range t.Files {
		t.Files[i].NoStore = true
	}
}

// NoopFlowVarEngine satisfies detect.FlowVarEngine for reference traffic
// that carries no flow variables.
type NoopFlowVarEngine struct{}

func (NoopFlowVarEngine) ProcessFlowvarList(*detect.ThreadCtx, detect.Flow) {}

// NoopPostMatch satisfies detect.PostMatch for signatures with no packet
// actions beyond alerting.
type NoopPostMatch struct{}

func (NoopPostMatch) Run(*detect.ThreadCtx, detect.Signature, detect.Flow, detect.Packet, detect.Transaction, bool) {
}
