package lifecycle

import (
	"github.com/vladislavdragonenkov/shelter/internal/domain"
)

// StepResult — итог необязательного шага операции. Ошибка шага не прерывает операцию.
type StepResult struct {
	Step    domain.LifecycleStep
	Err     error
	Skipped bool
	// Detail поясняет пропуск или результат (например, "dispatched" для асинхронной отправки).
	Detail string
}

// Outcome — результат операции над заявкой.
type Outcome struct {
	Transition domain.Transition
	Request    domain.AdoptionRequest
	// AlreadyApplied выставляется, если заявка уже находилась в целевом терминальном статусе.
	AlreadyApplied bool
	Steps          []StepResult
}

func (o *Outcome) record(step StepResult) {
	o.Steps = append(o.Steps, step)
}

// Step возвращает результат шага, если он выполнялся.
func (o Outcome) Step(step domain.LifecycleStep) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return StepResult{}, false
}

// Failures возвращает шаги, завершившиеся ошибкой.
func (o Outcome) Failures() []StepResult {
	var failed []StepResult
	for _, s := range o.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// NotificationErr возвращает ошибку отправки уведомления, если она была.
func (o Outcome) NotificationErr() error {
	if s, ok := o.Step(domain.StepNotify); ok {
		return s.Err
	}
	return nil
}
