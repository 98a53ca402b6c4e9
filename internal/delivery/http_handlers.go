package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adinsights/internal/domain"
	"adinsights/internal/usecase"
	"adinsights/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultQueryDays = 30

// SyncRunner runs one sync cycle.
type SyncRunner interface {
	RunSync(ctx context.Context, req domain.SyncRequest) (*domain.SyncReport, error)
}

// handles HTTP requests
type HTTPHandlers struct {
	syncService    SyncRunner
	metricsService *usecase.MetricsService
	accounts       domain.AccountRepository
	logger         *logger.Logger
	now            func() time.Time
}

func NewHTTPHandlers(
	syncService SyncRunner,
	metricsService *usecase.MetricsService,
	accounts domain.AccountRepository,
	logger *logger.Logger,
) *HTTPHandlers {
	return &HTTPHandlers{
		syncService:    syncService,
		metricsService: metricsService,
		accounts:       accounts,
		logger:         logger,
		now:            time.Now,
	}
}

type syncRunRequest struct {
	AccountIDs []string `json:"account_ids"`
	Days       int      `json:"days" binding:"omitempty,min=1,max=90"`
	EndDate    string   `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// RunSync triggers a sync cycle and returns its report.
func (h *HTTPHandlers) RunSync(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := c.GetString("request_id")

	var body syncRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.badRequest(c, "Invalid sync request", err)
			return
		}
	}
	if ids := c.Query("account_id"); ids != "" {
		body.AccountIDs = append(body.AccountIDs, splitList(ids)...)
	}
	if days := c.Query("days"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n < 1 {
			h.badRequest(c, "Invalid days parameter", errors.New("days must be a positive integer"))
			return
		}
		body.Days = n
	}

	req := domain.SyncRequest{AccountIDs: body.AccountIDs, Days: body.Days}
	if body.EndDate != "" {
		end, err := time.Parse(domain.DateLayout, body.EndDate)
		if err != nil {
			h.badRequest(c, "Invalid end_date", err)
			return
		}
		req.EndDate = end
	}

	h.logger.WithContext(ctx).WithField("accounts", req.AccountIDs).Info("Starting sync from API request")

	report, err := h.syncService.RunSync(ctx, req)
	if errors.Is(err, domain.ErrNoAccounts) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "No accounts to sync",
			"message":    "configure SYNC_ACCOUNT_IDS or pass account_ids",
			"request_id": requestID,
		})
		return
	}
	if err != nil {
		h.serverError(c, "Sync failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":     report,
		"request_id": requestID,
	})
}

func (h *HTTPHandlers) GetSummary(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}
	summary, err := h.metricsService.GetSummary(c.Request.Context(), q)
	if err != nil {
		h.queryError(c, "Failed to retrieve summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary, "request_id": c.GetString("request_id")})
}

func (h *HTTPHandlers) GetTrend(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}
	trend, err := h.metricsService.CompareTrend(c.Request.Context(), q)
	if err != nil {
		h.queryError(c, "Failed to compare periods", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": trend, "request_id": c.GetString("request_id")})
}

func (h *HTTPHandlers) GetBreakdown(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}
	rows, err := h.metricsService.GetBreakdown(c.Request.Context(), q)
	if err != nil {
		h.queryError(c, "Failed to build breakdown", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       rows,
		"total":      len(rows),
		"request_id": c.GetString("request_id"),
	})
}

func (h *HTTPHandlers) GetDailySeries(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}
	points, err := h.metricsService.GetDailySeries(c.Request.Context(), q)
	if err != nil {
		h.queryError(c, "Failed to build daily series", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points, "request_id": c.GetString("request_id")})
}

func (h *HTTPHandlers) GetDashboard(c *gin.Context) {
	q, ok := h.parseQuery(c)
	if !ok {
		return
	}
	dashboard, err := h.metricsService.GetDashboard(c.Request.Context(), q)
	if err != nil {
		h.queryError(c, "Failed to build dashboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dashboard, "request_id": c.GetString("request_id")})
}

func (h *HTTPHandlers) ListAccounts(c *gin.Context) {
	accounts, err := h.accounts.ListActive(c.Request.Context())
	if err != nil {
		h.serverError(c, "Failed to list accounts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":       accounts,
		"total":      len(accounts),
		"request_id": c.GetString("request_id"),
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "adinsights",
		"description": "Ad insights sync and reporting",
		"endpoints": gin.H{
			"POST /api/v1/sync/run":         "Sync the recent window; body {account_ids, days, end_date}",
			"GET /api/v1/accounts":          "Tracked accounts and sync status",
			"GET /api/v1/metrics/summary":   "Period totals; from, to, account_id, campaign_id, adset_id",
			"GET /api/v1/metrics/trend":     "Period over period; adds metric, compare_from, compare_to",
			"GET /api/v1/metrics/breakdown": "Ranked groups; adds dimension, metric, limit",
			"GET /api/v1/metrics/daily":     "Zero-filled daily series",
			"GET /api/v1/metrics/dashboard": "Summary, trend, top campaigns and daily series",
		},
		"request_id": c.GetString("request_id"),
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  h.now().UTC().Format(time.RFC3339),
		"service":    "adinsights",
		"request_id": c.GetString("request_id"),
	})
}

// parseQuery reads the shared aggregation parameters. It writes the 400
// response itself and reports false on bad input.
func (h *HTTPHandlers) parseQuery(c *gin.Context) (usecase.MetricsQuery, bool) {
	var q usecase.MetricsQuery

	r, err := h.parseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		h.badRequest(c, "Invalid date range", err)
		return q, false
	}
	q.Range = r

	if cf, ct := c.Query("compare_from"), c.Query("compare_to"); cf != "" || ct != "" {
		cmp, err := domain.ParseDateRange(cf, ct)
		if err != nil {
			h.badRequest(c, "Invalid comparison range", err)
			return q, false
		}
		q.Compare = &cmp
	}

	if m := c.Query("metric"); m != "" {
		if q.Metric, err = domain.ParseMetric(m); err != nil {
			h.badRequest(c, "Invalid metric", err)
			return q, false
		}
	}
	if d := c.Query("dimension"); d != "" {
		if q.Dimension, err = domain.ParseDimension(d); err != nil {
			h.badRequest(c, "Invalid dimension", err)
			return q, false
		}
	}
	if l := c.Query("limit"); l != "" {
		if q.Limit, err = strconv.Atoi(l); err != nil || q.Limit < 0 {
			h.badRequest(c, "Invalid limit", errors.New("limit must be a non-negative integer"))
			return q, false
		}
	}

	q.AccountIDs = splitList(c.Query("account_id"))
	q.CampaignID = c.Query("campaign_id")
	q.AdSetID = c.Query("adset_id")
	return q, true
}

// parseRange defaults to the last 30 days ending today.
func (h *HTTPHandlers) parseRange(from, to string) (domain.DateRange, error) {
	switch {
	case from == "" && to == "":
		return domain.LastNDays(h.now(), defaultQueryDays), nil
	case from == "":
		end, err := time.Parse(domain.DateLayout, to)
		if err != nil {
			return domain.DateRange{}, err
		}
		return domain.LastNDays(end, defaultQueryDays), nil
	case to == "":
		to = domain.Day(h.now()).Format(domain.DateLayout)
	}
	return domain.ParseDateRange(from, to)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimPrefix(strings.TrimSpace(part), "act_"); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *HTTPHandlers) queryError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrRangeMismatch),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrUnknownMetric),
		errors.Is(err, domain.ErrUnknownDimension):
		h.badRequest(c, msg, err)
	default:
		h.serverError(c, msg, err)
	}
}

func (h *HTTPHandlers) badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      msg,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}

func (h *HTTPHandlers) serverError(c *gin.Context, msg string, err error) {
	h.logger.WithContext(c.Request.Context()).WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      msg,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}
