package notification

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// MemoryGateway запоминает отправленные сообщения вместо доставки.
// Используется в тестах и в режиме локальной разработки.
type MemoryGateway struct {
	mu     sync.Mutex
	sent   []domain.Message
	failed int
	err    error
	logger *log.Entry
}

// NewMemoryGateway создаёт шлюз, который пишет сообщения в память и в лог.
func NewMemoryGateway(logger *log.Entry) *MemoryGateway {
	if logger == nil {
		logger = log.New().WithField("component", "notification-memory")
	}
	return &MemoryGateway{logger: logger}
}

// FailWith заставляет последующие отправки завершаться ошибкой; nil снимает сбой.
func (g *MemoryGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Send проверяет сообщение и сохраняет его.
func (g *MemoryGateway) Send(ctx context.Context, msg domain.Message) error {
	if err := Validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		g.failed++
		return g.err
	}
	g.sent = append(g.sent, msg)
	g.logger.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Debug("notification captured")
	return nil
}

// Sent возвращает копию доставленных сообщений.
func (g *MemoryGateway) Sent() []domain.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]domain.Message, len(g.sent))
	copy(out, g.sent)
	return out
}

// Failed возвращает число отправок, завершившихся заданной ошибкой.
func (g *MemoryGateway) Failed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed
}

var _ domain.NotificationGateway = (*MemoryGateway)(nil)
