package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	logFileName = "inboxgate.log"
)

func SetupLogger(env, logDir string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case envLocal:
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		var out io.Writer = os.Stdout
		if logDir != "" {
			file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				out = io.MultiWriter(os.Stdout, file)
			} else {
				fmt.Fprintf(os.Stderr, "log file unavailable, logging to stdout: %v\n", err)
			}
		}
		logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return logger
}

// TelegramSender delivers a plain text message to the admin chat.
type TelegramSender interface {
	SendMessage(msg string)
}

// SetupTelegramHandler duplicates records at or above level to the Telegram admin chat.
func SetupTelegramHandler(log *slog.Logger, tg TelegramSender, level slog.Level) *slog.Logger {
	return slog.New(&telegramHandler{
		next:  log.Handler(),
		tg:    tg,
		level: level,
	})
}

type telegramHandler struct {
	next  slog.Handler
	tg    TelegramSender
	level slog.Level
	attrs []slog.Attr
}

func (h *telegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *telegramHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level && h.tg != nil {
		var b strings.Builder
		b.WriteString(r.Level.String())
		b.WriteString(": ")
		b.WriteString(r.Message)
		for _, a := range h.attrs {
			b.WriteString("\n")
			b.WriteString(a.String())
		}
		r.Attrs(func(a slog.Attr) bool {
			b.WriteString("\n")
			b.WriteString(a.String())
			return true
		})
		go h.tg.SendMessage(b.String())
	}
	return h.next.Handle(ctx, r)
}

func (h *telegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &telegramHandler{
		next:  h.next.WithAttrs(attrs),
		tg:    h.tg,
		level: h.level,
		attrs: merged,
	}
}

func (h *telegramHandler) WithGroup(name string) slog.Handler {
	return &telegramHandler{
		next:  h.next.WithGroup(name),
		tg:    h.tg,
		level: h.level,
		attrs: h.attrs,
	}
}
