package postgres

import (
	"log/slog"
	"os"

	"github.com/cashflow-consolidation/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func strPtr(s string) *string { return &s }

// mustDate parses a date literal known to be valid
func mustDate(raw string) shared.Date {
	d, err := shared.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}
