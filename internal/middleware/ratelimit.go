package middleware

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avdeyev/dexflow-bot/internal/ratelimit"
	"gopkg.in/telebot.v3"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle returns a telebot middleware that enforces per-user rate limits.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		userID := sender.ID
		if m.rules.IsWhitelisted(userID) {
			return next(c)
		}

		if limit, window, err := m.rules.GetGlobalLimit(); err == nil {
			result, err := m.limiter.Check(context.Background(), "global", limit, window)
			if err == nil && !result.Allowed {
				if m.log != nil {
					m.log.Warn("global rate limit exceeded", slog.Int64("user_id", userID))
				}
				return c.Send("The bot is busy right now. Try again in a minute.")
			}
		}

		limit, window, err := m.rules.GetPerUserLimit()
		if err != nil {
			if m.log != nil {
				m.log.Error("failed to load per-user rate limit", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			return next(c)
		}

		key := fmt.Sprintf("user:%d", userID)
		result, err := m.limiter.Check(context.Background(), key, limit, window)
		if err != nil {
			if m.log != nil {
				m.log.Warn("rate limiter error", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			return next(c)
		}

		if !result.Allowed {
			if m.log != nil {
				m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID))
			}
			return c.Send("Rate limit exceeded. Try again later.")
		}

		if command := commandFrom(c); command != "" {
			if err := m.checkCommandLimit(c, userID, command); err != nil {
				return err
			}
		}

		return next(c)
	}
}

// checkCommandLimit enforces the tighter per-command limits configured
// for trading commands. Commands without a configured rule pass
// through.
func (m *RateLimitMiddleware) checkCommandLimit(c telebot.Context, userID int64, command string) error {
	limit, window, err := m.rules.GetCommandLimit(command)
	if err != nil {
		return nil
	}

	key := fmt.Sprintf("user:%d:cmd:%s", userID, command)
	result, err := m.limiter.Check(context.Background(), key, limit, window)
	if err != nil {
		if m.log != nil {
			m.log.Warn("rate limiter error",
				slog.Int64("user_id", userID),
				slog.String("command", command),
				slog.Any("error", err))
		}
		return nil
	}

	if !result.Allowed {
		if m.log != nil {
			m.log.Warn("command rate limit exceeded",
				slog.Int64("user_id", userID),
				slog.String("command", command))
		}
		return c.Send(fmt.Sprintf("Too many /%s requests. Try again later.", command))
	}

	return nil
}

func commandFrom(c telebot.Context) string {
	text := c.Text()
	if len(text) < 2 || text[0] != '/' {
		return ""
	}

	command := text[1:]
	for i := 0; i < len(command); i++ {
		if command[i] == ' ' || command[i] == '@' {
			command = command[:i]
			break
		}
	}

	return command
}
