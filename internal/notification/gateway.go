// Package notification содержит реализации domain.NotificationGateway и шаблоны писем.
package notification

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

var addressPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+$`)

// ValidAddress проверяет формат адреса получателя.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Validate проверяет сообщение до обращения к транспорту.
func Validate(msg domain.Message) error {
	if !ValidAddress(msg.To) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAddress, msg.To)
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return domain.ErrEmptySubject
	}
	if strings.TrimSpace(msg.Body) == "" {
		return domain.ErrEmptyBody
	}
	return nil
}
