package handler

import (
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/restobook/assignd/internal/assignment"
)

// A disabled-mode coordinator needs no collaborators, which makes it a
// convenient stand-in for testing the HTTP surface.
func disabledCoordinator() *assignment.Coordinator {
    return assignment.NewCoordinator(
        assignment.Config{Mode: assignment.ModeDisabled},
        nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
    )
}

func TestTriggerAssignmentRejectsBadIDs(t *testing.T) {
    h := NewAssignHandler(disabledCoordinator(), nil)
    e := echo.New()

    for _, id := range []string{"abc", "0", "-3", ""} {
        req := httptest.NewRequest(http.MethodPost, "/", nil)
        rec := httptest.NewRecorder()
        c := e.NewContext(req, rec)
        c.SetPath("/v1/bookings/:id/assign")
        c.SetParamNames("id")
        c.SetParamValues(id)

        if err := h.TriggerAssignment(c); err != nil {
            t.Fatalf("id %q: handler error: %v", id, err)
        }
        if rec.Code != http.StatusBadRequest {
            t.Fatalf("id %q: status = %d, want 400", id, rec.Code)
        }
    }
}

func TestTriggerAssignmentReportsOutcome(t *testing.T) {
    h := NewAssignHandler(disabledCoordinator(), nil)
    e := echo.New()

    req := httptest.NewRequest(http.MethodPost, "/?trigger=manual_retry", nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetPath("/v1/bookings/:id/assign")
    c.SetParamNames("id")
    c.SetParamValues("42")

    if err := h.TriggerAssignment(c); err != nil {
        t.Fatalf("handler error: %v", err)
    }
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d, want 200", rec.Code)
    }

    var resp assignResponse
    if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
        t.Fatalf("decode response: %v", err)
    }
    if resp.Outcome != "noop" || resp.Reason != "pipeline_disabled" {
        t.Fatalf("response = %+v", resp)
    }
}
