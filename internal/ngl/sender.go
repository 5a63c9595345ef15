// Package ngl posts one message to an NGL inbox a bounded number of times,
// strictly one request at a time with a fixed pause between attempts.
package ngl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"ngltool/pkg/clock"
	"ngltool/pkg/httpx"
	logx "ngltool/pkg/logx"
)

var ErrNoEndpoint = errors.New("ngl: submit endpoint is empty")

// Poster is the part of httpx.Client used by Sender.
type Poster interface {
	PostForm(ctx context.Context, endpoint string, form url.Values) (int, error)
}

// Sender runs bulk sends. It holds no per-run state; callers must not
// overlap runs that share an Observer.
type Sender struct {
	poster   Poster
	endpoint string
	clock    clock.Clock
	obs      Observer
	log      logx.Logger
	newID    func() string
}

// Option customizes a Sender.
type Option func(*Sender)

func WithClock(c clock.Clock) Option    { return func(s *Sender) { s.clock = c } }
func WithObserver(o Observer) Option    { return func(s *Sender) { s.obs = o } }
func WithLogger(l logx.Logger) Option   { return func(s *Sender) { s.log = l } }
func WithRunID(fn func() string) Option { return func(s *Sender) { s.newID = fn } }

func NewSender(poster Poster, endpoint string, opts ...Option) *Sender {
	s := &Sender{
		poster:   poster,
		endpoint: strings.TrimSpace(endpoint),
		clock:    clock.Real{},
		obs:      nopObserver{},
		log:      logx.Nop(),
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	return s
}

// Run submits message to identifier count times and records every attempt.
//
// Per-attempt failures never abort the loop. If ctx ends, the remaining
// attempts are recorded as failed without being sent, so the returned run
// always has count attempts. The count is not validated here.
func (s *Sender) Run(ctx context.Context, identifier, message string, count int) (*Run, error) {
	if s.endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if count < 0 {
		count = 0
	}

	run := &Run{
		ID:         s.newID(),
		Identifier: identifier,
		Count:      count,
		Attempts:   make([]Attempt, 0, count),
		Started:    s.clock.Now(),
	}
	log := s.log.With(logx.String("run_id", run.ID), logx.String("identifier", identifier))
	log.Info("bulk send started", logx.Int("count", count))

	for seq := 1; seq <= count; seq++ {
		a := s.attempt(ctx, identifier, message, seq)
		run.Attempts = append(run.Attempts, a)

		if a.OK {
			s.obs.OnLogLine(Channel, fmt.Sprintf("✅ Message %d/%d sent successfully", seq, count))
			log.Debug("attempt ok", logx.Int("seq", seq), logx.Int("status", a.Status))
		} else {
			s.obs.OnLogLine(Channel, fmt.Sprintf("❌ Message %d/%d failed: %s", seq, count, a.Err))
			log.Debug("attempt failed", logx.Int("seq", seq), logx.Int("status", a.Status), logx.String("reason", a.Err))
		}
		s.obs.OnProgress(seq, count)

		if seq < count && ctx.Err() == nil {
			// A cancelled sleep falls through; the next attempt sees ctx.Err().
			_ = s.clock.Sleep(ctx, AttemptDelay)
		}
	}

	run.Finished = s.clock.Now()
	log.Info("bulk send finished",
		logx.Int("succeeded", run.Succeeded()),
		logx.Int("failed", run.Failed()),
		logx.Duration("took", run.Duration()),
	)
	return run, nil
}

func (s *Sender) attempt(ctx context.Context, identifier, message string, seq int) Attempt {
	if err := ctx.Err(); err != nil {
		return Attempt{Seq: seq, Err: err.Error(), At: s.clock.Now()}
	}

	form := url.Values{}
	form.Set("username", identifier)
	form.Set("question", message)
	form.Set("deviceId", DeviceToken(s.clock.Now().UnixMilli(), seq-1))
	form.Set("gameSlug", "")
	form.Set("referrer", "")

	status, err := s.poster.PostForm(ctx, s.endpoint, form)
	a := Attempt{Seq: seq, Status: status, At: s.clock.Now()}
	if err != nil {
		a.Err = attemptError(err)
		return a
	}
	a.OK = true
	return a
}

// attemptError renders err for the terminal: "HTTP <code>" for status
// failures, the innermost cause for transport failures.
func attemptError(err error) string {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	var ne *httpx.NetworkError
	if errors.As(err, &ne) && ne.Err != nil {
		var ue *url.Error
		if errors.As(ne.Err, &ue) && ue.Err != nil {
			return ue.Err.Error()
		}
		return ne.Err.Error()
	}
	return err.Error()
}

// DeviceToken builds the per-attempt device id. It only needs to be unique
// within a run, not unpredictable.
func DeviceToken(unixMilli int64, index int) string {
	return fmt.Sprintf("device_%d_%d", unixMilli, index)
}
