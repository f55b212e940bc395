package notification

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// SMTPConfig — параметры подключения к почтовому серверу.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// StartTLS требует шифрование соединения; отключается только для локальных релеев.
	StartTLS bool
	Timeout  time.Duration
}

// SMTPGateway отправляет уведомления через SMTP.
type SMTPGateway struct {
	client *mail.Client
	cfg    SMTPConfig
	logger *log.Entry
}

// NewSMTPGateway создаёт клиент; соединение устанавливается на каждую отправку.
func NewSMTPGateway(cfg SMTPConfig, logger *log.Entry) (*SMTPGateway, error) {
	if logger == nil {
		logger = log.New().WithField("component", "notification-smtp")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if !ValidAddress(cfg.From) {
		return nil, fmt.Errorf("smtp sender: %w: %q", domain.ErrInvalidAddress, cfg.From)
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.StartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPGateway{client: client, cfg: cfg, logger: logger}, nil
}

// Send проверяет сообщение и доставляет его; ошибки транспорта оборачиваются в ErrNotificationFailed.
func (g *SMTPGateway) Send(ctx context.Context, msg domain.Message) error {
	if err := Validate(msg); err != nil {
		return err
	}

	m := mail.NewMsg()
	if err := m.FromFormat(g.cfg.FromName, g.cfg.From); err != nil {
		return fmt.Errorf("%w: sender: %v", domain.ErrNotificationFailed, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAddress, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	started := time.Now()
	if err := g.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	g.logger.WithFields(log.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("notification sent")
	return nil
}

var _ domain.NotificationGateway = (*SMTPGateway)(nil)
