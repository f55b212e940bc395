package grpcsvc

import (
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/shelter/internal/domain"
	"github.com/vladislavdragonenkov/shelter/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/shelter/internal/service/query"
)

func stringField(in *structpb.Struct, name string) string {
	if in == nil {
		return ""
	}
	v, ok := in.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func boolField(in *structpb.Struct, name string) bool {
	if in == nil {
		return false
	}
	return in.GetFields()[name].GetBoolValue()
}

func structField(in *structpb.Struct, name string) *structpb.Struct {
	if in == nil {
		return nil
	}
	return in.GetFields()[name].GetStructValue()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func requestFromStruct(in *structpb.Struct) domain.AdoptionRequest {
	reasons := structField(in, "reasons")
	return domain.AdoptionRequest{
		ID:          stringField(in, "request_id"),
		RequesterID: stringField(in, "requester_id"),
		PetID:       stringField(in, "pet_id"),
		Reasons: domain.AdoptionReasons{
			Motivation:      stringField(reasons, "motivation"),
			PreviousPets:    stringField(reasons, "previous_pets"),
			AcceptsFollowUp: boolField(reasons, "accepts_follow_up"),
			HousingDetails:  stringField(reasons, "housing_details"),
		},
	}
}

func requestFields(req domain.AdoptionRequest) map[string]any {
	return map[string]any{
		"request_id":      req.ID,
		"requester_id":    req.RequesterID,
		"pet_id":          req.PetID,
		"appointment_id":  req.AppointmentID,
		"status":          string(req.Status),
		"correction_note": req.CorrectionNote,
		"version":         req.Version,
		"submitted_at":    formatTime(req.SubmittedAt),
		"updated_at":      formatTime(req.UpdatedAt),
		"reasons": map[string]any{
			"motivation":        req.Reasons.Motivation,
			"previous_pets":     req.Reasons.PreviousPets,
			"accepts_follow_up": req.Reasons.AcceptsFollowUp,
			"housing_details":   req.Reasons.HousingDetails,
		},
	}
}

func outcomeFields(o lifecycle.Outcome) map[string]any {
	steps := make([]any, 0, len(o.Steps))
	for _, s := range o.Steps {
		step := map[string]any{
			"step":    string(s.Step),
			"skipped": s.Skipped,
		}
		if s.Detail != "" {
			step["detail"] = s.Detail
		}
		if s.Err != nil {
			step["error"] = s.Err.Error()
		}
		steps = append(steps, step)
	}
	return map[string]any{
		"operation":       string(o.Transition),
		"request":         requestFields(o.Request),
		"already_applied": o.AlreadyApplied,
		"steps":           steps,
	}
}

func petFields(p domain.Pet) map[string]any {
	return map[string]any{
		"pet_id":    p.ID,
		"name":      p.Name,
		"species":   p.Species,
		"breed":     p.Breed,
		"age_years": p.AgeYears,
		"available": p.Available,
		"status":    string(p.Status),
	}
}

func appointmentFields(a domain.Appointment) map[string]any {
	return map[string]any{
		"appointment_id": a.ID,
		"scheduled_at":   formatTime(a.ScheduledAt),
		"booked":         a.Booked,
	}
}

func viewFields(v query.RequestView) map[string]any {
	fields := map[string]any{
		"request": requestFields(v.Request),
	}
	if v.Requester != nil {
		fields["requester"] = map[string]any{
			"requester_id": v.Requester.ID,
			"name":         v.Requester.Name,
			"email":        v.Requester.Email,
		}
	}
	if v.Pet != nil {
		fields["pet"] = petFields(*v.Pet)
	}
	if v.AppointmentID != "" {
		fields["appointment_id"] = v.AppointmentID
	}
	if v.AppointmentAt != nil {
		fields["appointment_at"] = formatTime(*v.AppointmentAt)
	}
	if len(v.Timeline) > 0 {
		events := make([]any, 0, len(v.Timeline))
		for _, e := range v.Timeline {
			event := map[string]any{
				"type":        e.Type,
				"occurred_at": formatTime(e.Occurred),
			}
			if e.ActorID != "" {
				event["actor_id"] = e.ActorID
			}
			if e.Reason != "" {
				event["reason"] = e.Reason
			}
			events = append(events, event)
		}
		fields["timeline"] = events
	}
	if len(v.LookupErrors) > 0 {
		lookups := make([]any, 0, len(v.LookupErrors))
		for _, err := range v.LookupErrors {
			lookups = append(lookups, err.Error())
		}
		fields["lookup_errors"] = lookups
	}
	return fields
}

func listFields[T any](key string, items []T, convert func(T) map[string]any) map[string]any {
	list := make([]any, 0, len(items))
	for _, item := range items {
		list = append(list, convert(item))
	}
	return map[string]any{key: list}
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
