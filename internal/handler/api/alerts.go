package api

import (
	"net/http"
	"time"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/service/metrics"
	"SellerGuard/internal/usecase"
	xhttp "SellerGuard/pkg/http"
	applogger "SellerGuard/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AlertsHandler serves alert listing, status changes, preferences and the live stream.
type AlertsHandler struct {
	lifecycle *usecase.AlertLifecycle
	gate      *usecase.NotificationGate
	stream    http.HandlerFunc
	l         *applogger.Logger
}

func NewAlertsHandler(lifecycle *usecase.AlertLifecycle, gate *usecase.NotificationGate) *AlertsHandler {
	metrics.Register()
	return &AlertsHandler{lifecycle: lifecycle, gate: gate, l: applogger.Nop()}
}

func (h *AlertsHandler) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.l = l
	}
}

// SetStream mounts the websocket feed at /api/alerts/stream.
func (h *AlertsHandler) SetStream(fn http.HandlerFunc) { h.stream = fn }

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/accounts/:account/alerts", h.List)
	g.PATCH("/alerts/:id/status", h.UpdateStatus)
	g.GET("/accounts/:account/preferences", h.GetPreferences)
	g.PUT("/accounts/:account/preferences", h.PutPreferences)
	if h.stream != nil {
		g.GET("/alerts/stream", echo.WrapHandler(h.stream))
	}
}

func (h *AlertsHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.l.Error(endpoint+" failed", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *AlertsHandler) List(c echo.Context) error {
	defer observe("list_alerts", time.Now())
	req := &models.ListAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var (
		recs []models.AlertRecord
		err  error
	)
	if status := models.AlertStatus(req.Status); status == models.AlertStatusActive {
		recs, err = h.lifecycle.ListActive(c.Request().Context(), req.Account, req.Limit)
	} else {
		recs, err = h.lifecycle.List(c.Request().Context(), req.Account, status, req.Limit)
	}
	if err != nil {
		return h.fail(c, "list_alerts", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *AlertsHandler) UpdateStatus(c echo.Context) error {
	defer observe("update_status", time.Now())
	req := &models.UpdateStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.lifecycle.UpdateStatus(c.Request().Context(), req.ID, models.AlertStatus(req.Status))
	if err != nil {
		return h.fail(c, "update_status", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *AlertsHandler) GetPreferences(c echo.Context) error {
	req := &models.AccountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.gate.Preferences(c.Request().Context(), req.Account)
	if err != nil {
		return h.fail(c, "get_preferences", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *AlertsHandler) PutPreferences(c echo.Context) error {
	req := &models.PreferencesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.gate.SavePreferences(c.Request().Context(), models.NotificationPreferences{
		AccountID:       req.Account,
		EmailEnabled:    req.EmailEnabled,
		WhatsAppEnabled: req.WhatsAppEnabled,
		AlertThreshold:  models.AlertThreshold(req.AlertThreshold),
	})
	if err != nil {
		return h.fail(c, "put_preferences", err)
	}
	return xhttp.SuccessResponse(c, p)
}
