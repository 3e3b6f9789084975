package workflow

import (
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/event"
	domainwf "github.com/garyjia/lease-agent/internal/domain/workflow"
)

// newRequestEvent builds an event carrying the fields notification handlers need
func newRequestEvent(eventType event.Type, r *entity.LeaseRequest, extra map[string]interface{}) *event.Event {
	payload := map[string]interface{}{
		event.KeyStatus:         r.Status().String(),
		event.KeyRequestorEmail: r.RequestorEmail,
		event.KeyTenantName:     r.Tenant.Name,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return event.NewEvent(eventType, r.ID, payload)
}

// advanceEvents returns the events for a completed or failed step
func advanceEvents(r *entity.LeaseRequest, stepNumber int, previous domainwf.Status, performedBy string) []*event.Event {
	events := []*event.Event{
		newRequestEvent(event.TypeStepAdvanced, r, map[string]interface{}{
			event.KeyStepNumber:     stepNumber,
			event.KeyPreviousStatus: previous.String(),
			event.KeyPerformedBy:    performedBy,
		}),
	}
	return append(events, terminalEvents(r, stepNumber)...)
}

// terminalEvents returns the completion or failure event once the request settles
func terminalEvents(r *entity.LeaseRequest, stepNumber int) []*event.Event {
	switch r.Status() {
	case domainwf.StatusCompleted:
		return []*event.Event{newRequestEvent(event.TypeRequestCompleted, r, nil)}
	case domainwf.StatusFailed:
		return []*event.Event{newRequestEvent(event.TypeRequestFailed, r, map[string]interface{}{
			event.KeyStepNumber: stepNumber,
		})}
	default:
		return nil
	}
}

func reviewRequiredEvent(r *entity.LeaseRequest, stepNumber int, documentID string, score float64) *event.Event {
	return newRequestEvent(event.TypeReviewRequired, r, map[string]interface{}{
		event.KeyStepNumber:      stepNumber,
		event.KeyDocumentID:      documentID,
		event.KeyConfidenceScore: score,
	})
}

func reviewResolvedEvents(r *entity.LeaseRequest, stepNumber int, resolver string, approved bool) []*event.Event {
	events := []*event.Event{
		newRequestEvent(event.TypeReviewResolved, r, map[string]interface{}{
			event.KeyStepNumber:  stepNumber,
			event.KeyPerformedBy: resolver,
			event.KeyApproved:    approved,
		}),
	}
	return append(events, terminalEvents(r, stepNumber)...)
}

func extractionEvent(r *entity.LeaseRequest, documentID string, score float64) *event.Event {
	return newRequestEvent(event.TypeExtractionRecorded, r, map[string]interface{}{
		event.KeyDocumentID:      documentID,
		event.KeyConfidenceScore: score,
	})
}
