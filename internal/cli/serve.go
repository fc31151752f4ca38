package cli

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/spf13/cobra"

    "github.com/restobook/assignd/internal/handler"
    "github.com/restobook/assignd/internal/router"
)

var serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Run the HTTP assignment trigger service",
    RunE: func(cmd *cobra.Command, args []string) error {
        logger := newLogger()
        a, err := buildApp(logger)
        if err != nil {
            return err
        }
        defer a.close()

        e := echo.New()
        e.HideBanner = true
        router.RegisterRoutes(e, a.db)
        router.RegisterAssignment(e, handler.NewAssignHandler(a.coordinator, logger), a.cfg.JWTSecret)

        addr := ":" + a.cfg.Port
        logger.Info("listening", "addr", addr, "env", a.cfg.Env, "mode", a.pipeline.Mode)

        errCh := make(chan error, 1)
        go func() {
            if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
                errCh <- err
            }
        }()

        // Run until the server fails or a shutdown signal arrives, then
        // drain in-flight requests before releasing the pool.
        sigCh := make(chan os.Signal, 1)
        signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
        select {
        case err := <-errCh:
            return err
        case sig := <-sigCh:
            logger.Info("shutting down", "signal", sig.String())
        }

        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return e.Shutdown(ctx)
    },
}
