package notifier

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig controls when a provider circuit opens.
type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func (c BreakerConfig) settings(name string, log *zap.Logger) gobreaker.Settings {
	maxFailures := c.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    c.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("provider circuit state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	}
}

// BreakingEmailSender guards an EmailSender with a circuit breaker so an
// unavailable provider fails fast.
type BreakingEmailSender struct {
	next EmailSender
	cb   *gobreaker.CircuitBreaker
}

// NewBreakingEmailSender wraps next.
func NewBreakingEmailSender(next EmailSender, cfg BreakerConfig, log *zap.Logger) *BreakingEmailSender {
	return &BreakingEmailSender{next: next, cb: gobreaker.NewCircuitBreaker(cfg.settings("email", log))}
}

func (s *BreakingEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.SendEmail(ctx, msg)
	})
	return err
}

// State reports the breaker state.
func (s *BreakingEmailSender) State() gobreaker.State {
	return s.cb.State()
}

// BreakingSMSSender guards an SMSSender with a circuit breaker.
type BreakingSMSSender struct {
	next SMSSender
	cb   *gobreaker.CircuitBreaker
}

// NewBreakingSMSSender wraps next.
func NewBreakingSMSSender(next SMSSender, cfg BreakerConfig, log *zap.Logger) *BreakingSMSSender {
	return &BreakingSMSSender{next: next, cb: gobreaker.NewCircuitBreaker(cfg.settings("sms", log))}
}

func (s *BreakingSMSSender) SendSMS(ctx context.Context, msg SMSMessage) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.SendSMS(ctx, msg)
	})
	return err
}

// State reports the breaker state.
func (s *BreakingSMSSender) State() gobreaker.State {
	return s.cb.State()
}
