package api

import (
	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/service/metrics"
	"SellerGuard/internal/service/ratelimit"
	xhttp "SellerGuard/pkg/http"

	"github.com/labstack/echo/v4"
)

var domainErrors = []xhttp.ErrorRule{
	{Target: models.ErrAccountRequired, Build: xhttp.BadRequestError},
	{Target: models.ErrInvalidFactors, Build: xhttp.BadRequestError},
	{Target: models.ErrAlertNotFound, Build: xhttp.NotFoundError},
	{Target: models.ErrInvalidStatusTransition, Build: xhttp.ConflictError},
	{Target: models.ErrSyncInProgress, Build: xhttp.ConflictError},
	{Target: models.ErrAlertBusy, Build: xhttp.ConflictError},
}

// toAppError maps domain errors onto the response envelope.
func toAppError(err error) *xhttp.AppError {
	return xhttp.MapError(err, domainErrors)
}

// rateLimited rejects clients over their per-IP budget for endpoint.
func rateLimited(rl *ratelimit.Limiter, endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rl != nil && !rl.Allow(c.RealIP()+":"+endpoint) {
				metrics.RateLimited.WithLabelValues(endpoint).Inc()
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
			}
			return next(c)
		}
	}
}
