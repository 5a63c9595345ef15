package app

import (
	"context"
	"io"
	"net/http"

	"ngltool/internal/adapters/telegram"
	"ngltool/internal/config"
	"ngltool/internal/iplookup"
	"ngltool/internal/ngl"
	kit "ngltool/internal/transport"
	"ngltool/pkg/httpx"
	logx "ngltool/pkg/logx"
)

// App owns the long-lived pieces shared by both commands.
type App struct {
	log  logx.Logger
	logs *logx.Service
	tr   *http.Transport

	Term   *Terminal
	Send   *SendHandler
	Lookup *LookupHandler
}

// New wires the logger, the HTTP client and both handlers from cfg.
// Terminal lines go to out.
func New(cfg *config.Config, out io.Writer) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var sender kit.Sender
	if cfg.Logging.Telegram.Enabled {
		tg, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token})
		if err != nil {
			return nil, err
		}
		sender = tg
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.ChatID,
			ThreadID:   cfg.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, sender)

	hc, tr := httpx.NewHTTPClient(httpx.Options{
		Timeout:           cfg.HTTPTimeout(),
		DisableKeepAlives: cfg.HTTP.DisableKeepAlives,
	})
	client := httpx.New(hc, cfg.HTTP.UserAgent)

	term := NewTerminal(out, log.With(logx.String("comp", "terminal")), WithProgressBar(true))

	bulk := ngl.NewSender(client, cfg.Endpoints.Submit,
		ngl.WithObserver(term),
		ngl.WithLogger(log.With(logx.String("comp", "ngl"))),
	)
	locator := iplookup.New(client, cfg.Endpoints.SelfAddress, cfg.Endpoints.Geolocation,
		log.With(logx.String("comp", "iplookup")))

	return &App{
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		tr:     tr,
		Term:   term,
		Send:   NewSendHandler(bulk, term, log.With(logx.String("comp", "send"))),
		Lookup: NewLookupHandler(locator, term, log.With(logx.String("comp", "lookup"))),
	}, nil
}

func (a *App) Logger() logx.Logger { return a.log }

// Close releases idle connections and flushes the log sinks.
func (a *App) Close(ctx context.Context) error {
	if a.tr != nil {
		a.tr.CloseIdleConnections()
	}
	return a.logs.Close(ctx)
}
