package cli_test

import (
	"io"
	"log/slog"

	"github.com/aretw0/warden/internal/logging"
)

func testLogger(w io.Writer) *slog.Logger {
	return logging.NewWithWriter(w, slog.LevelDebug, "text")
}
