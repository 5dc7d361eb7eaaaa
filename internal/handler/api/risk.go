package api

import (
	"context"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	domsvc "SellerGuard/internal/domain/service"
	icache "SellerGuard/internal/service/cache"
	"SellerGuard/internal/service/metrics"
	"SellerGuard/internal/service/ratelimit"
	"SellerGuard/internal/services/risk"
	"SellerGuard/internal/usecase"
	xhttp "SellerGuard/pkg/http"
	applogger "SellerGuard/pkg/logger"
	"SellerGuard/pkg/util"

	"github.com/labstack/echo/v4"
)

// Syncer pulls one account from the marketplace on demand.
type Syncer interface {
	SyncAccount(ctx context.Context, accountID string) (models.MetricsSnapshot, error)
}

type alertsResponse struct {
	Score  models.RiskScoreResult `json:"score"`
	Alerts []models.RankedAlert   `json:"alerts"`
}

type priorityResponse struct {
	Priority int `json:"priority"`
}

type ruleResponse struct {
	Type        string `json:"type"`
	Known       bool   `json:"known"`
	Explanation string `json:"explanation"`
}

// RiskHandler serves scoring, evaluation and history endpoints.
type RiskHandler struct {
	engine    domsvc.RiskEngine
	evaluator usecase.SnapshotEvaluator
	history   domrepo.RiskHistoryStore
	syncer    Syncer
	cache     *icache.ResponseCache
	cacheTTL  time.Duration
	rl        *ratelimit.Limiter
	l         *applogger.Logger
	now       func() time.Time
}

func NewRiskHandler(engine domsvc.RiskEngine, evaluator usecase.SnapshotEvaluator, history domrepo.RiskHistoryStore) *RiskHandler {
	metrics.Register()
	return &RiskHandler{
		engine:    engine,
		evaluator: evaluator,
		history:   history,
		cacheTTL:  time.Minute,
		l:         applogger.Nop(),
		now:       time.Now,
	}
}

// SetCache enables response caching for history reads.
func (h *RiskHandler) SetCache(c *icache.ResponseCache, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.cacheTTL = ttl
	}
}

func (h *RiskHandler) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.l = l
	}
}

func (h *RiskHandler) SetRateLimiter(rl *ratelimit.Limiter) { h.rl = rl }

// SetSyncer enables the on-demand sync route. Without one the route answers 503.
func (h *RiskHandler) SetSyncer(s Syncer) { h.syncer = s }

func (h *RiskHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/risk/score", h.Score, rateLimited(h.rl, "score"))
	g.POST("/risk/alerts", h.Alerts, rateLimited(h.rl, "alerts"))
	g.POST("/alerts/priority", h.Priority, rateLimited(h.rl, "priority"))
	g.POST("/accounts/:account/evaluate", h.Evaluate, rateLimited(h.rl, "evaluate"))
	g.POST("/accounts/:account/sync", h.Sync, rateLimited(h.rl, "sync"))
	g.GET("/accounts/:account/risk/history", h.History, rateLimited(h.rl, "history"))
	g.GET("/rules/:type", h.Rule)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *RiskHandler) fail(c echo.Context, endpoint string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.l.Error(endpoint+" failed", applogger.Error(err))
	} else {
		h.l.Debug(endpoint+" rejected", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *RiskHandler) Score(c echo.Context) error {
	defer observe("score", time.Now())
	req := &models.RiskFactors{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.engine.Score(*req))
}

func (h *RiskHandler) Alerts(c echo.Context) error {
	defer observe("alerts", time.Now())
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	score := h.engine.Score(req.Current)
	raised := h.engine.Alerts(req.Current, req.Previous, score)
	ranked := make([]models.RankedAlert, len(raised))
	for i, a := range raised {
		ranked[i] = models.RankedAlert{Alert: a, Priority: h.engine.Priority(a, nil)}
	}
	return xhttp.SuccessResponse(c, alertsResponse{Score: score, Alerts: ranked})
}

func (h *RiskHandler) Priority(c echo.Context) error {
	defer observe("priority", time.Now())
	req := &models.PriorityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := h.engine.Priority(req.Alert, &models.UserHistory{IgnoredSimilarAlerts: req.IgnoredSimilarAlerts})
	return xhttp.SuccessResponse(c, priorityResponse{Priority: p})
}

func (h *RiskHandler) Evaluate(c echo.Context) error {
	defer observe("evaluate", time.Now())
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ev, err := h.evaluator.Evaluate(c.Request().Context(), models.MetricsSnapshot{
		AccountID:  req.Account,
		CapturedAt: h.now().UTC(),
		Factors:    req.RiskFactors,
	})
	if err != nil {
		return h.fail(c, "evaluate", err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *RiskHandler) Sync(c echo.Context) error {
	defer observe("sync", time.Now())
	req := &models.AccountRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.syncer == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_SYNC_DISABLED", "marketplace sync is disabled"))
	}
	snap, err := h.syncer.SyncAccount(c.Request().Context(), req.Account)
	if err != nil {
		return h.fail(c, "sync", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *RiskHandler) History(c echo.Context) error {
	defer observe("history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	key := fmt.Sprintf("history:%s:%d", req.Account, req.Days)

	if h.cache != nil {
		var cached []models.RiskHistoryEntry
		ok, err := h.cache.Load(ctx, "history", key, &cached)
		if err != nil {
			h.l.Warn("history cache get failed", applogger.Error(err))
		}
		if ok {
			return xhttp.SuccessResponse(c, cached)
		}
	}

	since := util.WindowStart(h.now(), req.Days)
	entries, err := h.history.History(ctx, req.Account, since)
	if err != nil {
		return h.fail(c, "history", err)
	}
	if entries == nil {
		entries = []models.RiskHistoryEntry{}
	}

	if h.cache != nil {
		if err := h.cache.Store(ctx, key, entries, h.cacheTTL); err != nil {
			h.l.Warn("history cache set failed", applogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, entries)
}

func (h *RiskHandler) Rule(c echo.Context) error {
	req := &models.RuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, ruleResponse{
		Type:        req.Type,
		Known:       risk.IsKnownRule(req.Type),
		Explanation: risk.ExplainRule(req.Type),
	})
}
