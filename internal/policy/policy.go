// Package policy проверяет допустимость операций над заявкой до обращения к хранилищам.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// targets задаёт целевой статус каждой операции.
var targets = map[domain.Transition]domain.RequestStatus{
	domain.TransitionAccept:            domain.RequestStatusApproved,
	domain.TransitionReject:            domain.RequestStatusRejected,
	domain.TransitionModify:            domain.RequestStatusRequiresModification,
	domain.TransitionCancel:            domain.RequestStatusCancelled,
	domain.TransitionCancelAppointment: domain.RequestStatusAppointmentCancelled,
}

// ValidTransitions — таблица разрешённых переходов статусов заявки.
var ValidTransitions = map[domain.RequestStatus][]domain.RequestStatus{
	domain.RequestStatusPending: {
		domain.RequestStatusApproved,
		domain.RequestStatusRejected,
		domain.RequestStatusRequiresModification,
		domain.RequestStatusCancelled,
		domain.RequestStatusAppointmentCancelled,
	},
	domain.RequestStatusRequiresModification: {
		domain.RequestStatusApproved,
		domain.RequestStatusRejected,
		domain.RequestStatusCancelled,
		domain.RequestStatusAppointmentCancelled,
	},
}

// CanTransition возвращает true, если переход from -> to разрешён таблицей.
func CanTransition(from, to domain.RequestStatus) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Target возвращает статус, в который переводит операция.
func Target(t domain.Transition) (domain.RequestStatus, bool) {
	status, ok := targets[t]
	return status, ok
}

// TransitionError описывает недопустимый переход.
type TransitionError struct {
	Transition domain.Transition
	From       domain.RequestStatus
	To         domain.RequestStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("%s: invalid status transition %s -> %s", e.Transition, e.From, e.To)
}

// Unwrap позволяет сопоставлять ошибку с domain.ErrInvalidTransition.
func (e TransitionError) Unwrap() error {
	return domain.ErrInvalidTransition
}

// Verdict — результат проверки перехода.
type Verdict int

const (
	// Proceed — переход разрешён, шаги выполняются.
	Proceed Verdict = iota
	// AlreadyApplied — заявка уже в целевом терминальном статусе, повтор ничего не меняет.
	AlreadyApplied
)

// IDRule — дополнительная проверка идентификатора до загрузки заявки.
type IDRule func(t domain.Transition, requestID string) error

// RequestRule — дополнительная проверка загруженной заявки.
type RequestRule func(t domain.Transition, req domain.AdoptionRequest) error

// Option настраивает RequestPolicy.
type Option func(*RequestPolicy)

// WithIDRule добавляет проверку идентификатора для указанных операций (все, если не заданы).
func WithIDRule(rule IDRule, transitions ...domain.Transition) Option {
	return func(p *RequestPolicy) {
		p.idRules = append(p.idRules, scopedIDRule{rule: rule, scope: scopeOf(transitions)})
	}
}

// WithRequestRule добавляет проверку заявки для указанных операций (все, если не заданы).
func WithRequestRule(rule RequestRule, transitions ...domain.Transition) Option {
	return func(p *RequestPolicy) {
		p.requestRules = append(p.requestRules, scopedRequestRule{rule: rule, scope: scopeOf(transitions)})
	}
}

type scopedIDRule struct {
	rule  IDRule
	scope map[domain.Transition]struct{}
}

type scopedRequestRule struct {
	rule  RequestRule
	scope map[domain.Transition]struct{}
}

func scopeOf(transitions []domain.Transition) map[domain.Transition]struct{} {
	if len(transitions) == 0 {
		return nil
	}
	scope := make(map[domain.Transition]struct{}, len(transitions))
	for _, t := range transitions {
		scope[t] = struct{}{}
	}
	return scope
}

func inScope(scope map[domain.Transition]struct{}, t domain.Transition) bool {
	if scope == nil {
		return true
	}
	_, ok := scope[t]
	return ok
}

// RequestPolicy — чистый набор правил без обращения к хранилищам.
type RequestPolicy struct {
	idRules      []scopedIDRule
	requestRules []scopedRequestRule
}

// New создаёт политику с базовыми правилами и дополнительными опциями.
func New(opts ...Option) *RequestPolicy {
	p := &RequestPolicy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckID отклоняет пустой или пробельный идентификатор, затем применяет пользовательские правила.
func (p *RequestPolicy) CheckID(t domain.Transition, requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("%s: %w", t, domain.ErrRequestIDRequired)
	}
	for _, r := range p.idRules {
		if !inScope(r.scope, t) {
			continue
		}
		if err := r.rule(t, requestID); err != nil {
			return fmt.Errorf("%s: %w: %w", t, domain.ErrTransitionDenied, err)
		}
	}
	return nil
}

// Evaluate проверяет переход по таблице состояний и пользовательским правилам.
// Повтор терминального перехода, уже применённого к заявке, возвращает AlreadyApplied.
func (p *RequestPolicy) Evaluate(t domain.Transition, req domain.AdoptionRequest) (Verdict, error) {
	to, ok := targets[t]
	if !ok {
		return Proceed, fmt.Errorf("%s: %w", t, domain.ErrInvalidTransition)
	}
	if !req.Status.Valid() {
		return Proceed, fmt.Errorf("%s: %w: %q", t, domain.ErrUnknownStatus, req.Status)
	}
	if req.Status == to && to.Terminal() {
		return AlreadyApplied, nil
	}
	if !CanTransition(req.Status, to) {
		return Proceed, TransitionError{Transition: t, From: req.Status, To: to}
	}

	for _, r := range p.requestRules {
		if !inScope(r.scope, t) {
			continue
		}
		if err := r.rule(t, req); err != nil {
			return Proceed, fmt.Errorf("%s: %w: %w", t, domain.ErrTransitionDenied, err)
		}
	}
	return Proceed, nil
}

// CheckSubmission проверяет новую заявку перед подачей.
func (p *RequestPolicy) CheckSubmission(req domain.AdoptionRequest) error {
	if errs := req.Validate(); len(errs) > 0 {
		return fmt.Errorf("%s: %w", domain.TransitionSubmit, errors.Join(errs...))
	}
	for _, r := range p.requestRules {
		if !inScope(r.scope, domain.TransitionSubmit) {
			continue
		}
		if err := r.rule(domain.TransitionSubmit, req); err != nil {
			return fmt.Errorf("%s: %w: %w", domain.TransitionSubmit, domain.ErrTransitionDenied, err)
		}
	}
	return nil
}
