package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"ngltool/internal/ngl"
	logx "ngltool/pkg/logx"
)

const messagePreviewLen = 50

// BulkRunner is implemented by *ngl.Sender.
type BulkRunner interface {
	Run(ctx context.Context, identifier, message string, count int) (*ngl.Run, error)
}

type SendRequest struct {
	Username string
	Message  string
	Count    int
}

// SendHandler validates a send request, runs it and prints the summary.
type SendHandler struct {
	runner BulkRunner
	term   *Terminal
	log    logx.Logger

	busy atomic.Bool
}

func NewSendHandler(runner BulkRunner, term *Terminal, log logx.Logger) *SendHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &SendHandler{runner: runner, term: term, log: log}
}

// Handle runs one bulk send. Validation failures are reported and returned
// before anything is sent. Once a run starts, the ready line is always
// printed, whatever the outcome.
func (h *SendHandler) Handle(ctx context.Context, req SendRequest) (*ngl.Run, error) {
	username := strings.TrimSpace(req.Username)
	message := strings.TrimSpace(req.Message)

	if err := validateSend(username, message, req.Count); err != nil {
		h.line("❌ ERROR: " + err.Error())
		return nil, err
	}

	if !h.busy.CompareAndSwap(false, true) {
		h.line("⏳ BUSY: wait for the current run to finish")
		return nil, ErrBusy
	}
	defer func() {
		h.term.ResetProgress()
		h.line("✅ SYSTEM: Ready for next operation")
		h.busy.Store(false)
	}()

	h.line(fmt.Sprintf("🚀 STARTING: Sending %d messages to %s", req.Count, username))
	h.line(fmt.Sprintf("📝 MESSAGE: \"%s\"", preview(message, messagePreviewLen)))

	run, err := h.runner.Run(ctx, username, message, req.Count)
	if err != nil {
		h.line("💥 CRITICAL ERROR: " + err.Error())
		h.log.Error("bulk send aborted", logx.Err(err))
		return nil, err
	}

	ok := run.Succeeded()
	h.line(fmt.Sprintf("✅ COMPLETED: %d/%d messages sent in %.1fs", ok, run.Count, run.Duration().Seconds()))
	h.line(fmt.Sprintf("📊 SUCCESS RATE: %.1f%%", run.SuccessRate()))
	switch run.Outcome() {
	case ngl.OutcomeAll:
		h.line("🎉 SUCCESS: All messages delivered successfully!")
	case ngl.OutcomePartial:
		h.line("⚠️ PARTIAL: Some messages failed to deliver")
	default:
		h.line("❌ FAILED: No messages were delivered")
	}
	if run.Failed() > 0 {
		h.log.Warn("bulk send finished with failures",
			logx.String("run_id", run.ID),
			logx.Int("failed", run.Failed()),
			logx.Int("count", run.Count),
		)
	}
	return run, nil
}

func (h *SendHandler) line(text string) { h.term.OnLogLine(ngl.Channel, text) }

func validateSend(username, message string, count int) error {
	switch {
	case username == "":
		return invalid("username", "NGL username required")
	case message == "":
		return invalid("message", "Message content required")
	case count < ngl.MinCount || count > ngl.MaxCount:
		return invalid("count", fmt.Sprintf("Message count must be between %d-%d", ngl.MinCount, ngl.MaxCount))
	}
	return nil
}

// preview cuts s to n runes, marking the cut with "...".
func preview(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
