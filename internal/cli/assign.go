package cli

import (
    "fmt"
    "strconv"

    "github.com/spf13/cobra"

    "github.com/restobook/assignd/internal/assignment"
)

var assignTrigger string

func init() {
    assignCmd.Flags().StringVar(&assignTrigger, "trigger", "cli", "trigger label recorded on the run")
}

var assignCmd = &cobra.Command{
    Use:   "assign <booking-id>",
    Short: "Run one assignment pass for a booking",
    Long:  "Runs a single ProcessBooking pass against the configured stores and prints the outcome. Intended for operator retries and scheduled backfills; the same locks and limits apply as in the service.",
    Args:  cobra.ExactArgs(1),
    RunE: func(cmd *cobra.Command, args []string) error {
        bookingID, err := strconv.ParseUint(args[0], 10, 64)
        if err != nil || bookingID == 0 {
            return fmt.Errorf("invalid booking id %q", args[0])
        }

        logger := newLogger()
        a, err := buildApp(logger)
        if err != nil {
            return err
        }
        defer a.close()

        outcome, err := a.coordinator.ProcessBooking(cmd.Context(), bookingID, assignTrigger)
        if err != nil {
            return err
        }

        switch outcome.Kind {
        case assignment.OutcomeConfirmed:
            fmt.Printf("confirmed booking=%d strategy=%s hold=%s\n", bookingID, outcome.Strategy, outcome.HoldID)
        case assignment.OutcomeRetry:
            fmt.Printf("retry booking=%d reason=%s after=%s\n", bookingID, outcome.Reason, outcome.Delay)
        case assignment.OutcomeManualReview:
            fmt.Printf("manual_review booking=%d reason=%s\n", bookingID, outcome.Reason)
        default:
            fmt.Printf("noop booking=%d reason=%s\n", bookingID, outcome.Reason)
        }
        return nil
    },
}
