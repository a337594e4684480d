package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestTimeout returns middleware that sets a context deadline on each
// incoming request and answers 503 with a JSON body once the deadline is
// exceeded. The handler is served through http.TimeoutHandler, whose
// response writer is mutex-guarded and discards writes after the deadline,
// so a handler that ignores its context can never race or corrupt the
// timeout response. Access-check callers rely on this deadline to get a
// bounded fail-closed answer when the store is unreachable.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return echomw.TimeoutWithConfig(echomw.TimeoutConfig{
		Timeout:      timeout,
		ErrorMessage: `{"error":"request processing exceeded the allowed time limit"}`,
	})
}
