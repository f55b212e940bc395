package domain

import (
	"strings"
	"time"
)

// Requester — человек, подающий заявку.
type Requester struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Admin     bool
	CreatedAt time.Time
}

// HasContact сообщает, есть ли у заявителя адрес для уведомлений.
func (r *Requester) HasContact() bool {
	return strings.TrimSpace(r.Email) != ""
}
