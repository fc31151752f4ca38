package handler

import (
    "net/http"
    "strconv"

    "github.com/hashicorp/go-hclog"
    "github.com/labstack/echo/v4"

    "github.com/restobook/assignd/internal/assignment"
)

// AssignHandler exposes the assignment pipeline over HTTP for webhooks and
// operator tooling.  It owns no business logic; every request is one
// ProcessBooking call and the outcome is reported verbatim.
type AssignHandler struct {
    coordinator *assignment.Coordinator
    logger      hclog.Logger
}

// NewAssignHandler constructs an AssignHandler.
func NewAssignHandler(coordinator *assignment.Coordinator, logger hclog.Logger) *AssignHandler {
    if logger == nil {
        logger = hclog.NewNullLogger()
    }
    return &AssignHandler{coordinator: coordinator, logger: logger.Named("http")}
}

// assignResponse is the wire form of an assignment outcome.  RetryAfterMs
// is only present on retry outcomes, Strategy/HoldID only on confirmations.
type assignResponse struct {
    Outcome      string `json:"outcome"`
    Reason       string `json:"reason,omitempty"`
    RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
    Strategy     string `json:"strategy,omitempty"`
    HoldID       string `json:"hold_id,omitempty"`
}

// TriggerAssignment handles POST /v1/bookings/:id/assign.  The optional
// ?trigger= query parameter records what initiated the run (webhook,
// manual retry, backfill); it defaults to "api".
func (h *AssignHandler) TriggerAssignment(c echo.Context) error {
    bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || bookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    trigger := c.QueryParam("trigger")
    if trigger == "" {
        trigger = "api"
    }

    outcome, err := h.coordinator.ProcessBooking(c.Request().Context(), bookingID, trigger)
    if err != nil {
        h.logger.Error("assignment failed", "booking_id", bookingID, "trigger", trigger, "error", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assignment failed"})
    }

    resp := assignResponse{
        Outcome: string(outcome.Kind),
        Reason:  outcome.Reason,
    }
    status := http.StatusOK
    switch outcome.Kind {
    case assignment.OutcomeConfirmed:
        resp.Strategy = outcome.Strategy
        resp.HoldID = outcome.HoldID
    case assignment.OutcomeRetry:
        resp.RetryAfterMs = outcome.Delay.Milliseconds()
        // 202: the booking is still in flight and should be re-triggered.
        status = http.StatusAccepted
    }
    return c.JSON(status, resp)
}
