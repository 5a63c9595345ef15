package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ngltool/internal/iplookup"
	"ngltool/internal/ngl"
	"ngltool/pkg/clock"
	logx "ngltool/pkg/logx"
)

type stubRunner struct {
	run   *ngl.Run
	err   error
	calls int
	block chan struct{}
}

func (s *stubRunner) Run(ctx context.Context, identifier, message string, count int) (*ngl.Run, error) {
	s.calls++
	if s.block != nil {
		<-s.block
	}
	return s.run, s.err
}

func newTestTerminal(buf *bytes.Buffer) *Terminal {
	clk := clock.NewFake(time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC))
	return NewTerminal(buf, logx.Nop(), WithClock(clk))
}

func makeRun(results ...bool) *ngl.Run {
	start := time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC)
	r := &ngl.Run{ID: "run-1", Identifier: "alice", Count: len(results), Started: start}
	for i, ok := range results {
		a := ngl.Attempt{Seq: i + 1, OK: ok}
		if !ok {
			a.Err = "HTTP 500"
		}
		r.Attempts = append(r.Attempts, a)
	}
	r.Finished = start.Add(time.Duration(len(results)-1) * ngl.AttemptDelay)
	return r
}

func TestSendHandlerValidation(t *testing.T) {
	cases := []struct {
		name  string
		req   SendRequest
		field string
	}{
		{"empty username", SendRequest{Username: "  ", Message: "hi", Count: 1}, "username"},
		{"empty message", SendRequest{Username: "alice", Message: "\t", Count: 1}, "message"},
		{"count zero", SendRequest{Username: "alice", Message: "hi", Count: 0}, "count"},
		{"count too high", SendRequest{Username: "alice", Message: "hi", Count: 51}, "count"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			runner := &stubRunner{}
			h := NewSendHandler(runner, newTestTerminal(&buf), logx.Nop())

			_, err := h.Handle(context.Background(), tc.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
			if runner.calls != 0 {
				t.Fatalf("runner should not be called")
			}
			if !strings.Contains(buf.String(), "[13:04:05] > ❌ ERROR: ") {
				t.Fatalf("missing error line:\n%s", buf.String())
			}
		})
	}
}

func TestSendHandlerSummary(t *testing.T) {
	cases := []struct {
		name    string
		run     *ngl.Run
		summary []string
	}{
		{"all", makeRun(true, true), []string{"COMPLETED: 2/2 messages sent in 1.5s", "SUCCESS RATE: 100.0%", "🎉 SUCCESS"}},
		{"partial", makeRun(true, false, true), []string{"COMPLETED: 2/3 messages sent in 3.0s", "SUCCESS RATE: 66.7%", "⚠️ PARTIAL"}},
		{"none", makeRun(false), []string{"COMPLETED: 0/1 messages sent in 0.0s", "SUCCESS RATE: 0.0%", "❌ FAILED: No messages"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewSendHandler(&stubRunner{run: tc.run}, newTestTerminal(&buf), logx.Nop())
			run, err := h.Handle(context.Background(), SendRequest{Username: " alice ", Message: "hi", Count: tc.run.Count})
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if run != tc.run {
				t.Fatalf("unexpected run returned")
			}
			out := buf.String()
			for _, want := range append(tc.summary, "STARTING: Sending", "to alice", "SYSTEM: Ready for next operation") {
				if !strings.Contains(out, want) {
					t.Fatalf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestSendHandlerCriticalErrorStillRestores(t *testing.T) {
	var buf bytes.Buffer
	term := newTestTerminal(&buf)
	term.OnProgress(3, 10)
	h := NewSendHandler(&stubRunner{err: ngl.ErrNoEndpoint}, term, logx.Nop())

	_, err := h.Handle(context.Background(), SendRequest{Username: "alice", Message: "hi", Count: 3})
	if !errors.Is(err, ngl.ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "💥 CRITICAL ERROR: ngl: submit endpoint is empty") {
		t.Fatalf("missing critical line:\n%s", out)
	}
	if !strings.HasSuffix(out, "✅ SYSTEM: Ready for next operation\n") {
		t.Fatalf("ready line must be last:\n%s", out)
	}
	if cur, total := term.Progress(); cur != 0 || total != 0 {
		t.Fatalf("progress not reset: %d/%d", cur, total)
	}

	// The handler is usable again.
	if _, err := h.Handle(context.Background(), SendRequest{Username: "alice", Message: "hi", Count: 1}); errors.Is(err, ErrBusy) {
		t.Fatal("handler stayed busy after failure")
	}
}

func TestSendHandlerRejectsOverlap(t *testing.T) {
	var buf bytes.Buffer
	runner := &stubRunner{run: makeRun(true), block: make(chan struct{})}
	h := NewSendHandler(runner, newTestTerminal(&buf), logx.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = h.Handle(context.Background(), SendRequest{Username: "alice", Message: "hi", Count: 1})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !h.busy.Load() {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := h.Handle(context.Background(), SendRequest{Username: "bob", Message: "hi", Count: 1}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(runner.block)
	wg.Wait()
}

func TestPreview(t *testing.T) {
	if got := preview("short", 50); got != "short" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("é", 60)
	if got := preview(long, 50); got != strings.Repeat("é", 50)+"..." {
		t.Fatalf("got %q", got)
	}
}

type stubLocator struct {
	rec   iplookup.Record
	err   error
	addrs []string
}

func (s *stubLocator) Lookup(ctx context.Context, address string) (iplookup.Record, error) {
	s.addrs = append(s.addrs, address)
	return s.rec, s.err
}

func TestLookupHandlerSelfMode(t *testing.T) {
	var buf bytes.Buffer
	loc := &stubLocator{rec: iplookup.Record{
		Address: "203.0.113.9", City: "Jakarta", Region: "Jakarta", Country: "Indonesia",
		Latitude: "-6.2", Longitude: "106.8", ISP: "PT Example", ASN: "AS64500",
	}}
	h := NewLookupHandler(loc, newTestTerminal(&buf), logx.Nop())

	// Address is ignored in self mode.
	if _, err := h.Handle(context.Background(), LookupRequest{Mode: ModeSelf, Address: "1.1.1.1"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(loc.addrs) != 1 || loc.addrs[0] != "" {
		t.Fatalf("expected self lookup, got %q", loc.addrs)
	}
	out := buf.String()
	for _, want := range []string{
		"TARGET: Auto-detecting public IP",
		"IP Address:   203.0.113.9",
		"LOCATION: Jakarta, Jakarta, Indonesia",
		"COORDINATES: -6.2, 106.8",
		"NETWORK: PT Example (AS64500)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLookupHandlerOtherModeValidation(t *testing.T) {
	for _, addr := range []string{"", "   ", "not-an-ip", "300.1.1.1"} {
		var buf bytes.Buffer
		loc := &stubLocator{}
		h := NewLookupHandler(loc, newTestTerminal(&buf), logx.Nop())

		_, err := h.Handle(context.Background(), LookupRequest{Mode: ModeOther, Address: addr})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%q: expected ValidationError, got %v", addr, err)
		}
		if len(loc.addrs) != 0 {
			t.Fatalf("%q: locator should not be called", addr)
		}
		if !strings.Contains(buf.String(), "❌ ERROR: ") {
			t.Fatalf("%q: missing error line", addr)
		}
	}
}

func TestLookupHandlerReportsLookupError(t *testing.T) {
	var buf bytes.Buffer
	loc := &stubLocator{err: &iplookup.LookupError{Msg: "lookup endpoint returned 429"}}
	h := NewLookupHandler(loc, newTestTerminal(&buf), logx.Nop())

	_, err := h.Handle(context.Background(), LookupRequest{Mode: ModeOther, Address: "1.2.3.4"})
	var le *iplookup.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("expected LookupError, got %v", err)
	}
	if loc.addrs[0] != "1.2.3.4" {
		t.Fatalf("address = %q", loc.addrs[0])
	}
	if !strings.Contains(buf.String(), "❌ ERROR: lookup endpoint returned 429") {
		t.Fatalf("missing error line:\n%s", buf.String())
	}
	if h.busy.Load() {
		t.Fatal("handler stayed busy")
	}
}

func TestAsLabel(t *testing.T) {
	for in, want := range map[string]string{"AS64500": "AS64500", "64500": "AS64500", "-": "-"} {
		if got := asLabel(in); got != want {
			t.Fatalf("asLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(5, 10, 10); got != "[█████░░░░░]  50%" {
		t.Fatalf("got %q", got)
	}
	if got := progressBar(0, 0, 4); got != "[░░░░]   0%" {
		t.Fatalf("got %q", got)
	}
}
