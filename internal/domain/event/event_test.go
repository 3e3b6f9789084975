package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeRequestSubmitted, true},
		{"step advanced", TypeStepAdvanced, true},
		{"review required", TypeReviewRequired, true},
		{"review resolved", TypeReviewResolved, true},
		{"extraction recorded", TypeExtractionRecorded, true},
		{"completed", TypeRequestCompleted, true},
		{"failed", TypeRequestFailed, true},
		{"unknown type", Type("unknown.type"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	if got := TypeReviewRequired.String(); got != "request.review_required" {
		t.Errorf("Type.String() = %v, want %v", got, "request.review_required")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeStepAdvanced, "LR-123", map[string]interface{}{
		KeyStepNumber: 4,
		KeyStatus:     "space_validation",
	})

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeStepAdvanced {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeStepAdvanced)
	}
	if event.RequestID != "LR-123" {
		t.Errorf("Event RequestID = %v, want %v", event.RequestID, "LR-123")
	}
	if event.CorrelationID != event.ID {
		t.Errorf("Event CorrelationID = %v, want the event id", event.CorrelationID)
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}

	other := NewEvent(TypeStepAdvanced, "LR-123", nil)
	if other.ID == event.ID {
		t.Error("Event IDs should be unique")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeReviewResolved, "LR-789", nil, "corr-123")

	if event.CorrelationID != "corr-123" {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, "corr-123")
	}
	if event.ID == "corr-123" {
		t.Error("Event ID should be generated, not the correlation id")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRequestSubmitted, "LR-1", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.RequestID != original.RequestID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_PayloadGetters(t *testing.T) {
	event := NewEvent(TypeReviewRequired, "LR-1", map[string]interface{}{
		KeyStepNumber:      2,
		KeyConfidenceScore: 0.65,
		KeyApproved:        true,
		KeyStatus:          "pending_review",
		"int64":            int64(7),
		"float_step":       3.0,
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"int", event.GetPayloadInt(KeyStepNumber), 2},
		{"int64 as int", event.GetPayloadInt("int64"), 7},
		{"float as int", event.GetPayloadInt("float_step"), 3},
		{"missing int", event.GetPayloadInt("missing"), 0},
		{"float", event.GetPayloadFloat(KeyConfidenceScore), 0.65},
		{"int as float", event.GetPayloadFloat(KeyStepNumber), 2.0},
		{"string as float", event.GetPayloadFloat(KeyStatus), 0.0},
		{"bool", event.GetPayloadBool(KeyApproved), true},
		{"string as bool", event.GetPayloadBool(KeyStatus), false},
		{"string", event.GetPayloadString(KeyStatus), "pending_review"},
		{"int as string", event.GetPayloadString(KeyStepNumber), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
