// Package logging configures the process-wide slog handler. Library packages
// only emit through slog; binaries call Setup once at startup.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Setup installs the default slog handler. With a file path, output goes to a
// daily-rotated log kept for a week; otherwise to stderr.
func Setup(level, file string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("logging: bad level %q: %w", level, err)
	}

	var w io.Writer = os.Stderr
	if file != "" {
		rl, err := rotatelogs.New(
			file+".%Y%m%d",
			rotatelogs.WithLinkName(file),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithMaxAge(7*24*time.Hour),
		)
		if err != nil {
			return fmt.Errorf("logging: open rotating log %s: %w", file, err)
		}
		w = rl
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
