package notification

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// Kind — вид уведомления.
type Kind string

const (
	KindConfirmation         Kind = "confirmation"
	KindAcceptance           Kind = "acceptance"
	KindRejection            Kind = "rejection"
	KindModification         Kind = "modification"
	KindCancellation         Kind = "cancellation"
	KindAppointmentCancelled Kind = "appointment_cancelled"
)

// Data — подстановки для шаблонов.
type Data struct {
	RecipientName string
	PetName       string
	AppointmentAt time.Time
	Note          string
}

type letter struct {
	subject     string
	body        string
	petFallback string
}

var letters = map[Kind]letter{
	KindConfirmation: {
		subject:     "Adoption request received",
		petFallback: "your future pet",
		body: `Hello {{.RecipientName}},

We have received your adoption request for {{.PetName}}.
{{- if .HasAppointment}}
Your visit is booked for {{.When}}.
{{- end}}
Our team will review it and get back to you soon.
`,
	},
	KindAcceptance: {
		subject:     "Your adoption request has been accepted",
		petFallback: "your new pet",
		body: `Hello {{.RecipientName}},

Great news: your request to adopt {{.PetName}} has been accepted.
{{- if .HasAppointment}}
Please come to the shelter on {{.When}} to meet {{.PetName}}.
{{- else}}
We will contact you to arrange a visit.
{{- end}}
`,
	},
	KindRejection: {
		subject:     "Update on your adoption request",
		petFallback: "the pet",
		body: `Hello {{.RecipientName}},

Thank you for your interest in {{.PetName}}. After reviewing your request we are unable to approve it at this time.
You are welcome to apply for another of our animals.
`,
	},
	KindModification: {
		subject:     "Your adoption request needs changes",
		petFallback: "the pet",
		body: `Hello {{.RecipientName}},

Your request to adopt {{.PetName}} needs a few changes before we can continue.
Reviewer notes: {{.Note}}
`,
	},
	KindCancellation: {
		subject:     "Your adoption request has been withdrawn",
		petFallback: "the pet",
		body: `Hello {{.RecipientName}},

Your adoption request for {{.PetName}} has been withdrawn.
{{- if .HasAppointment}}
Your visit on {{.When}} stays booked; cancel it separately if you no longer plan to come.
{{- end}}
`,
	},
	KindAppointmentCancelled: {
		subject:     "Your shelter visit has been cancelled",
		petFallback: "the pet",
		body: `Hello {{.RecipientName}},

Your adoption request for {{.PetName}} and the related visit{{if .HasAppointment}} on {{.When}}{{end}} have been cancelled.
`,
	},
}

// Templates рендерит тексты уведомлений.
type Templates struct {
	bodies   map[Kind]*template.Template
	location *time.Location
}

// NewTemplates разбирает встроенные шаблоны; даты выводятся в часовом поясе loc (UTC, если nil).
func NewTemplates(loc *time.Location) (*Templates, error) {
	if loc == nil {
		loc = time.UTC
	}
	t := &Templates{bodies: make(map[Kind]*template.Template, len(letters)), location: loc}
	for kind, l := range letters {
		parsed, err := template.New(string(kind)).Option("missingkey=error").Parse(l.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		t.bodies[kind] = parsed
	}
	return t, nil
}

// MustTemplates — вариант NewTemplates для встроенных шаблонов, которые всегда валидны.
func MustTemplates() *Templates {
	t, err := NewTemplates(nil)
	if err != nil {
		panic(err)
	}
	return t
}

type view struct {
	RecipientName  string
	PetName        string
	Note           string
	HasAppointment bool
	When           string
}

// Render собирает сообщение для получателя to.
func (t *Templates) Render(kind Kind, to string, data Data) (domain.Message, error) {
	l, ok := letters[kind]
	if !ok {
		return domain.Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	v := view{
		RecipientName: strings.TrimSpace(data.RecipientName),
		PetName:       strings.TrimSpace(data.PetName),
		Note:          data.Note,
	}
	if v.RecipientName == "" {
		v.RecipientName = "there"
	}
	if v.PetName == "" {
		v.PetName = l.petFallback
	}
	if !data.AppointmentAt.IsZero() {
		v.HasAppointment = true
		v.When = data.AppointmentAt.In(t.location).Format("Monday, 02 January 2006 at 15:04")
	}

	var buf bytes.Buffer
	if err := t.bodies[kind].Execute(&buf, v); err != nil {
		return domain.Message{}, fmt.Errorf("render %s template: %w", kind, err)
	}

	return domain.Message{To: to, Subject: l.subject, Body: buf.String()}, nil
}
