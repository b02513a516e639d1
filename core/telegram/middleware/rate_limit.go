package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/counterbot/core/logger"
	tghelpers "github.com/m3rciful/counterbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds (see UpdateKind) that are never limited.
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// senderClock remembers when each sender last got through.
type senderClock struct {
	mu    sync.Mutex
	seen  map[int64]time.Time
	sweep time.Time
}

// admit records now for id unless the previous admission is closer than interval.
func (s *senderClock) admit(id int64, now time.Time, interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.sweep) > time.Minute {
		for k, t := range s.seen {
			if now.Sub(t) >= interval {
				delete(s.seen, k)
			}
		}
		s.sweep = now
	}
	if last, ok := s.seen[id]; ok && now.Sub(last) < interval {
		return false
	}
	s.seen[id] = now
	return true
}

// RateLimitMiddleware drops updates from a sender that arrive less than
// Interval after the previous admitted one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	clock := &senderClock{seen: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c)
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if clock.admit(user.ID, time.Now(), opts.Interval) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
