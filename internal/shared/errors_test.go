package shared

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError_ToHTTP(t *testing.T) {
	httpErr := NewAPIError("session_not_found", "session not found").ToHTTP(http.StatusNotFound)
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", httpErr.Code)
	}

	apiErr, ok := httpErr.Message.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError message, got %T", httpErr.Message)
	}
	if apiErr.Code != "session_not_found" {
		t.Errorf("unexpected code: %s", apiErr.Code)
	}
}

func TestAPIError_WithDetails(t *testing.T) {
	apiErr := NewAPIError("invalid_request", "bad input").WithDetails(map[string]string{"field": "user_id"})
	if apiErr.Details == nil {
		t.Error("details should be set")
	}
}

func TestBadRequest(t *testing.T) {
	err := BadRequest("missing_field", "userId is required")
	if err.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", err.Code)
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidTransition,
		ErrPreconditionFailed,
		ErrCollaboratorFailure,
		ErrConfigurationMissing,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v should not match %v", a, b)
			}
		}
	}
}
