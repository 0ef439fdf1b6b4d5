package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"classificados/internal/logging"
)

// Logger logs each HTTP request as one JSON line on stdout.
func Logger(loc *time.Location) fiber.Handler {
	return LoggerWithWriter(os.Stdout, loc)
}

// LoggerWithWriter logs each HTTP request to w with the fields:
// request_id, method, path, status, latency (milliseconds, float) and ts in loc.
// 5xx responses are logged at error level, 4xx at warn.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	logger := zerolog.New(w)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := responseStatus(c, err)

		level := zerolog.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zerolog.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zerolog.WarnLevel
		}

		logger.WithLevel(level).
			Str(logging.TimestampField, time.Now().In(loc).Format(time.RFC3339Nano)).
			Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Msg("request")

		return err
	}
}

// responseStatus is the status the client will see. Errors returned down the
// chain are only turned into a response by the app's ErrorHandler afterwards.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
