// Package idempotency защищает мутирующие операции от повторного выполнения по одному ключу
// и периодически удаляет просроченные ключи.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

var (
	// ErrInProgress — запрос с тем же ключом ещё выполняется.
	ErrInProgress = errors.New("request with the same idempotency key is already processing")
	// ErrCorruptRecord — сохранённый результат нельзя воспроизвести.
	ErrCorruptRecord = errors.New("idempotency record cannot be replayed")
)

// Failure — сохранённая ошибка первого выполнения, которую получают повторные вызовы.
type Failure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return "previous request with the same idempotency key failed"
	}
	return f.Message
}

// Classifier превращает ошибку обработчика в код и сообщение транспорта.
type Classifier func(err error) (code int, message string)

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithTTL задаёт срок хранения ключа.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithClassifier задаёт преобразование ошибок в сохраняемый Failure.
func WithClassifier(classify Classifier) GuardOption {
	return func(g *Guard) {
		if classify != nil {
			g.classify = classify
		}
	}
}

// WithGuardLogger задаёт logger.
func WithGuardLogger(logger *log.Entry) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// Guard выполняет обработчик не более одного раза на ключ и воспроизводит его результат.
type Guard struct {
	repo     domain.IdempotencyRepository
	ttl      time.Duration
	classify Classifier
	logger   *log.Entry
	now      func() time.Time
}

// NewGuard создаёт Guard поверх репозитория ключей. С nil-репозиторием Guard ничего не кэширует.
func NewGuard(repo domain.IdempotencyRepository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo:     repo,
		ttl:      domain.DefaultIdempotencyTTL,
		classify: func(err error) (int, string) { return 0, err.Error() },
		logger:   log.WithField("component", "idempotency-guard"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled сообщает, подключено ли хранилище ключей.
func (g *Guard) Enabled() bool {
	return g != nil && g.repo != nil
}

// Fingerprint строит хеш операции и тела запроса для сравнения повторов.
func Fingerprint(operation string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Do выполняет handler под ключом key для операции operation с телом body. Повтор с тем же
// телом возвращает сохранённый ответ или *Failure; повтор с другим телом или другой операцией
// возвращает domain.ErrIdempotencyFingerprintMismatch.
func (g *Guard) Do(key, operation string, body []byte, handler func() ([]byte, error)) ([]byte, error) {
	if !g.Enabled() {
		return handler()
	}

	record, err := g.repo.Claim(domain.IdempotencyClaim{
		Key:         key,
		Operation:   operation,
		Fingerprint: Fingerprint(operation, body),
		ExpiresAt:   g.now().Add(g.ttl),
	})
	if err != nil {
		return g.replay(record, err)
	}

	entry := g.logger.WithFields(log.Fields{"idempotency_key": record.Key, "operation": operation})
	response, runErr := handler()
	outcome := domain.IdempotencyOutcome{Status: domain.IdempotencyStatusCompleted, Response: response}
	if runErr != nil {
		code, message := g.classify(runErr)
		payload, encErr := json.Marshal(Failure{Code: code, Message: message})
		if encErr != nil {
			entry.WithError(encErr).Warn("failed to encode idempotency failure")
		}
		outcome = domain.IdempotencyOutcome{Status: domain.IdempotencyStatusFailed, Response: payload, Code: code}
	}
	if err := g.repo.Resolve(record.Key, outcome); err != nil {
		entry.WithError(err).Warn("failed to store idempotency outcome")
	}
	return response, runErr
}

func (g *Guard) replay(record domain.IdempotencyRecord, claimErr error) ([]byte, error) {
	if !errors.Is(claimErr, domain.ErrIdempotencyKeyAlreadyExists) {
		return nil, claimErr
	}

	switch record.Status {
	case domain.IdempotencyStatusProcessing:
		return nil, ErrInProgress
	case domain.IdempotencyStatusCompleted:
		if len(record.Response) == 0 {
			return nil, fmt.Errorf("%w: empty response", ErrCorruptRecord)
		}
		return record.Response, nil
	case domain.IdempotencyStatusFailed:
		failure := &Failure{Code: record.Code}
		if len(record.Response) > 0 {
			if err := json.Unmarshal(record.Response, failure); err != nil {
				g.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode idempotency failure")
			}
		}
		return nil, failure
	default:
		return nil, fmt.Errorf("%w: status %q", ErrCorruptRecord, record.Status)
	}
}
