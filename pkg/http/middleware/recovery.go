package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	applogger "SellerGuard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PanicError carries a recovered handler panic to the server error handler.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Recover converts handler panics into a *PanicError. The error handler renders it as a 500.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				perr := &PanicError{Value: r, Stack: debug.Stack()}
				if l != nil {
					l.Error("panic recovered",
						applogger.String("method", c.Request().Method),
						applogger.String("route", c.Path()),
						applogger.Any("panic", r),
						applogger.String("stack", string(perr.Stack)))
				}
				err = perr
			}()
			return next(c)
		}
	}
}
