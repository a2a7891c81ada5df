// Command detectsim replays the stateful signature continuation engine
// against a handful of synthetic HTTP-like flows, printing each dispatch
// decision as it happens. It exists to make the engine's behavior visible
// outside of a test binary — there is no other CLI or wire surface (spec.md
// §6 is explicit that the core introduces none of its own).
package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Schnaffon/suricata/alproto"
	"github.com/Schnaffon/suricata/detect"
	"github.com/Schnaffon/suricata/engines"
	"github.com/Schnaffon/suricata/ops"
)

// Options are detectsim's command-line flags.
type Options struct {
	Flows   int  `long:"flows" default:"3" description:"Number of concurrent simulated flows to replay"`
	Verbose bool `long:"verbose" short:"v" description:"Log parked/reconsidered records in addition to alerts"`
}

func main() {
	var opts Options
	var parser = flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if _, ok := err.(*flags.Error); ok {
			os.Exit(1) // flags already printed a notification
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	var logger *ops.Logger
	if opts.Verbose {
		var l = logrus.New()
		l.SetLevel(logrus.DebugLevel)
		logger = ops.NewWithEntry(logrus.NewEntry(l))
	}

	var alertTotal atomic.Int64
	var group errgroup.Group
	for i := 0; i < opts.Flows; i++ {
		var flowNum = i
		group.Go(func() error {
			var n, err = replayOne(flowNum, logger)
			alertTotal.Add(int64(n))
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("replaying flows: %w", err)
	}

	color.New(color.Bold).Printf("replayed %d flows, %d alerts total\n", opts.Flows, alertTotal.Load())
	return nil
}

// replayOne drives the late-arriving-cookie scenario (spec.md §8 S1) on its
// own flow and returns the number of alerts it produced.
func replayOne(flowNum int, logger *ops.Logger) (int, error) {
	var sig = engines.NewSignature(detect.Sid(100+flowNum),
		[]detect.EngineKind{detect.EngineHeader, detect.EngineCookie},
		engines.WithMethod("POST"), engines.WithUserAgentLike("Mozilla"), engines.WithCookieLike("session"))

	var app = alproto.NewState(detect.AlProtoHTTP)
	var flow = alproto.NewFlow(app)
	var tx = app.AppendTransaction()
	tx.Method = "POST"

	var queue = &engines.AlertQueue{}
	var engineOpts = []detect.Option{
		detect.WithAlertQueue(queue),
		detect.WithFileSubsystem(engines.FileSubsystem{}),
		detect.WithFlowVarEngine(engines.NoopFlowVarEngine{}),
		detect.WithPostMatch(engines.NoopPostMatch{}),
	}
	if logger != nil {
		engineOpts = append(engineOpts, detect.WithLogger(logger.With("flow", flowNum)))
	}
	var e = detect.NewEngine(engines.NewHTTPTable(), engines.NewSignatureSet(sig), engineOpts...)

	var thread = &detect.ThreadCtx{}
	var alver uint64

	// Packet 1: method only.
	alver++
	if _, err := e.StartDetection(thread, flow, nil, sig, detect.ToServer, boolToInt(sig.FileInterested())); err != nil {
		return 0, err
	}
	printDecision(flowNum, 1, len(queue.Alerts))

	// Packet 2: header arrives.
	tx.Header["User-Agent"] = "Mozilla/5.0"
	alver++
	if err := continueIfInspectable(e, thread, flow, detect.ToServer, alver); err != nil {
		return 0, err
	}
	printDecision(flowNum, 2, len(queue.Alerts))

	// Packet 3: cookie arrives, signature should alert.
	tx.Cookie = "session=abc123"
	alver++
	if err := continueIfInspectable(e, thread, flow, detect.ToServer, alver); err != nil {
		return 0, err
	}
	printDecision(flowNum, 3, len(queue.Alerts))

	return len(queue.Alerts), nil
}

func continueIfInspectable(e *detect.Engine, thread *detect.ThreadCtx, flow *alproto.Flow, dir detect.Direction, alversion uint64) error {
	switch detect.HasInspectableState(flow, dir, alversion) {
	case detect.StateNone, detect.StateInspectableUnchanged:
		return nil
	}
	return e.ContinueDetection(thread, flow, nil, dir, alversion)
}

func printDecision(flowNum, packetNum, alerts int) {
	if alerts > 0 {
		color.New(color.FgRed, color.Bold).Printf("flow %d packet %d: %d alert(s) enqueued\n", flowNum, packetNum, alerts)
	} else {
		color.New(color.FgYellow).Printf("flow %d packet %d: no alert yet\n", flowNum, packetNum)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
