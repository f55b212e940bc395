package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// ErrCircuitOpen возвращается, пока circuit breaker не пропускает отправки.
var ErrCircuitOpen = errors.New("notification circuit breaker is open")

// RetryConfig конфигурация повторных попыток отправки.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker размыкает цепь после maxFailures подряд и пробует снова через resetTimeout.
type CircuitBreaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	failures    int
	lastFailure time.Time
	state       CircuitState
	logger      *log.Entry
}

// NewCircuitBreaker создаёт circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.New().WithField("component", "notification-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
		logger:       logger,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow сообщает, можно ли выполнять вызов; открытая цепь переходит в half-open по таймауту.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.logger.Info("circuit breaker half-open")
		return true
	}
	return false
}

// Record учитывает результат вызова.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == CircuitHalfOpen {
			cb.logger.Info("circuit breaker closed")
		}
		cb.state = CircuitClosed
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != CircuitOpen {
			cb.logger.WithField("failures", cb.failures).Warn("circuit breaker opened")
		}
		cb.state = CircuitOpen
	}
}

// ResilientGateway добавляет к шлюзу ограничение частоты, повторы и circuit breaker.
type ResilientGateway struct {
	next    domain.NotificationGateway
	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
	logger  *log.Entry
}

// ResilientOption настраивает ResilientGateway.
type ResilientOption func(*ResilientGateway)

// WithRetry задаёт политику повторов.
func WithRetry(cfg RetryConfig) ResilientOption {
	return func(g *ResilientGateway) { g.retry = cfg }
}

// WithCircuitBreaker задаёт circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) ResilientOption {
	return func(g *ResilientGateway) { g.breaker = cb }
}

// WithRateLimit ограничивает число отправок в секунду; rps <= 0 отключает ограничение.
func WithRateLimit(rps float64, burst int) ResilientOption {
	return func(g *ResilientGateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithResilientLogger задаёт logger.
func WithResilientLogger(logger *log.Entry) ResilientOption {
	return func(g *ResilientGateway) { g.logger = logger }
}

// NewResilientGateway оборачивает next.
func NewResilientGateway(next domain.NotificationGateway, opts ...ResilientOption) *ResilientGateway {
	g := &ResilientGateway{
		next:  next,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.New().WithField("component", "notification-resilient")
	}
	if g.breaker == nil {
		g.breaker = NewCircuitBreaker(5, 30*time.Second, g.logger)
	}
	if g.retry.MaxAttempts <= 0 {
		g.retry.MaxAttempts = 1
	}
	return g
}

// Send валидирует сообщение один раз и повторяет только сбои транспорта.
func (g *ResilientGateway) Send(ctx context.Context, msg domain.Message) error {
	if err := Validate(msg); err != nil {
		return err
	}

	var lastErr error
	delay := g.retry.InitialDelay

	for attempt := 1; attempt <= g.retry.MaxAttempts; attempt++ {
		if !g.breaker.Allow() {
			return fmt.Errorf("%w: %w", domain.ErrNotificationFailed, ErrCircuitOpen)
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: rate limit wait: %v", domain.ErrNotificationFailed, err)
			}
		}

		err := g.next.Send(ctx, msg)
		g.breaker.Record(err)
		if err == nil {
			if attempt > 1 {
				g.logger.WithFields(log.Fields{"to": msg.To, "attempt": attempt}).Info("notification sent after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == g.retry.MaxAttempts {
			break
		}

		g.logger.WithError(err).WithFields(log.Fields{
			"to":      msg.To,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("notification failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * g.retry.BackoffFactor)
		if g.retry.MaxDelay > 0 && delay > g.retry.MaxDelay {
			delay = g.retry.MaxDelay
		}
	}

	return lastErr
}

// shouldRetry отсекает ошибки формата сообщения и отмену контекста.
func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrEmptySubject),
		errors.Is(err, domain.ErrEmptyBody),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}

var _ domain.NotificationGateway = (*ResilientGateway)(nil)
