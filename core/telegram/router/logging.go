package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	"github.com/m3rciful/counterbot/core/metrics"
	tghelpers "github.com/m3rciful/counterbot/core/telegram/helpers"
)

// serve runs h as the named handler and writes its summary line.
func serve(c tele.Context, name string, h tele.HandlerFunc) error {
	start := time.Now()
	tghelpers.WithHandler(c, name)
	err := h(c)
	summarize(c, name, "", time.Since(start), err)
	return err
}

// summarize logs handler.handled and feeds the handler metrics. An empty
// status is derived from err.
func summarize(c tele.Context, name, status string, took time.Duration, err error) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := tghelpers.Sent(c)

	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	if status == "" {
		status = outcome
	}
	metrics.ObserveHandler(name, outcome, took, msgs)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.Clip(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

// handlerName turns "/createcounter" into "createcounter".
func handlerName(endpoint string) string {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(endpoint), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// errorCode prefers a Code() string anywhere in the error chain.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return "UNKNOWN"
}
