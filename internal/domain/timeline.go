package domain

import "time"

// TimelineEvent описывает событие в истории заявки.
type TimelineEvent struct {
	RequestID string
	Type      string
	ActorID   string
	Reason    string
	Occurred  time.Time
}
