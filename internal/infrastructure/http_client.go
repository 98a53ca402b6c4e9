package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/config"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"golang.org/x/time/rate"
)

var (
	campaignFields = []string{"id", "name", "status", "objective"}
	adSetFields    = []string{"id", "name", "status", "campaign_id"}
	adFields       = []string{"id", "name", "status", "campaign_id", "adset_id", "creative{object_type,video_id}"}
	accountFields  = []string{"account_id", "name", "currency", "timezone_name", "account_status"}
)

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 4096

// GraphAPIClient implements domain.InsightsAPIClient against the Graph
// insights API. Every HTTP request draws one call from budget.
type GraphAPIClient struct {
	client      *http.Client
	budget      domain.CallBudget
	baseURL     string
	accessToken string
	pageLimit   int
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

func NewGraphAPIClient(cfg config.UpstreamConfig, budget domain.CallBudget, logger *logger.Logger, metrics *metrics.Metrics) *GraphAPIClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &GraphAPIClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		budget:      budget,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.Trim(cfg.APIVersion, "/"),
		accessToken: cfg.AccessToken,
		pageLimit:   cfg.PageLimit,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type graphPaging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// FetchInsightsPage fetches one page of daily insight rows.
func (c *GraphAPIClient) FetchInsightsPage(ctx context.Context, req domain.InsightsRequest) (*domain.InsightsPage, error) {
	timeRange, err := json.Marshal(map[string]string{
		"since": req.Window.StartDate(),
		"until": req.Window.EndDate(),
	})
	if err != nil {
		return nil, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = domain.InsightFields
	}

	q := url.Values{}
	q.Set("level", string(req.Level))
	q.Set("time_range", string(timeRange))
	q.Set("time_increment", "1")
	q.Set("fields", strings.Join(fields, ","))
	if c.pageLimit > 0 {
		q.Set("limit", strconv.Itoa(c.pageLimit))
	}
	if req.After != "" {
		q.Set("after", req.After)
	}

	var body struct {
		Data   []domain.RawInsight `json:"data"`
		Paging graphPaging         `json:"paging"`
	}
	if err := c.get(ctx, "insights", c.endpoint(req.AccountID, "insights"), q, &body); err != nil {
		return nil, err
	}

	page := &domain.InsightsPage{Rows: body.Data}
	if body.Paging.Next != "" {
		page.Next = body.Paging.Cursors.After
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"account_id": req.AccountID,
		"level":      req.Level,
		"window":     req.Window.String(),
		"rows":       len(body.Data),
		"has_next":   page.Next != "",
	}).Debug("Fetched insights page")

	return page, nil
}

// FetchAccount fetches account display attributes.
func (c *GraphAPIClient) FetchAccount(ctx context.Context, accountID string) (*domain.AccountMetadata, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(accountFields, ","))

	var body struct {
		AccountID     string          `json:"account_id"`
		Name          string          `json:"name"`
		Currency      string          `json:"currency"`
		TimezoneName  string          `json:"timezone_name"`
		AccountStatus json.RawMessage `json:"account_status"`
	}
	if err := c.get(ctx, "account", c.endpoint(accountID, ""), q, &body); err != nil {
		return nil, err
	}

	return &domain.AccountMetadata{
		ID:       accountID,
		Name:     body.Name,
		Currency: body.Currency,
		Timezone: body.TimezoneName,
		Status:   strings.Trim(string(body.AccountStatus), `"`),
	}, nil
}

type graphAd struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	CampaignID string `json:"campaign_id"`
	AdSetID    string `json:"adset_id"`
	Creative   struct {
		ObjectType string `json:"object_type"`
		VideoID    string `json:"video_id"`
	} `json:"creative"`
}

// FetchStructure fetches every campaign, ad set and ad of the account.
func (c *GraphAPIClient) FetchStructure(ctx context.Context, accountID string) (*domain.Structure, error) {
	now := time.Now().UTC()

	campaigns, err := fetchAllPages[domain.Campaign](ctx, c, "campaigns", accountID, campaignFields)
	if err != nil {
		return nil, fmt.Errorf("fetch campaigns: %w", err)
	}
	adSets, err := fetchAllPages[domain.AdSet](ctx, c, "adsets", accountID, adSetFields)
	if err != nil {
		return nil, fmt.Errorf("fetch ad sets: %w", err)
	}
	ads, err := fetchAllPages[graphAd](ctx, c, "ads", accountID, adFields)
	if err != nil {
		return nil, fmt.Errorf("fetch ads: %w", err)
	}

	s := &domain.Structure{
		Campaigns: campaigns,
		AdSets:    adSets,
		Ads:       make([]domain.Ad, 0, len(ads)),
	}
	for i := range s.Campaigns {
		s.Campaigns[i].AccountID = accountID
		s.Campaigns[i].UpdatedAt = now
	}
	for i := range s.AdSets {
		s.AdSets[i].AccountID = accountID
		s.AdSets[i].UpdatedAt = now
	}
	for _, a := range ads {
		creative := strings.ToLower(a.Creative.ObjectType)
		if a.Creative.VideoID != "" {
			creative = domain.CreativeVideo
		}
		s.Ads = append(s.Ads, domain.Ad{
			ID:           a.ID,
			AccountID:    accountID,
			CampaignID:   a.CampaignID,
			AdSetID:      a.AdSetID,
			Name:         a.Name,
			Status:       a.Status,
			CreativeType: creative,
			UpdatedAt:    now,
		})
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"account_id": accountID,
		"campaigns":  len(s.Campaigns),
		"adsets":     len(s.AdSets),
		"ads":        len(s.Ads),
	}).Info("Fetched account structure")

	return s, nil
}

func fetchAllPages[T any](ctx context.Context, c *GraphAPIClient, edge, accountID string, fields []string) ([]T, error) {
	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))
	if c.pageLimit > 0 {
		q.Set("limit", strconv.Itoa(c.pageLimit))
	}

	out := make([]T, 0)
	for {
		var body struct {
			Data   []T         `json:"data"`
			Paging graphPaging `json:"paging"`
		}
		if err := c.get(ctx, edge, c.endpoint(accountID, edge), q, &body); err != nil {
			return nil, err
		}
		out = append(out, body.Data...)

		after := body.Paging.Cursors.After
		if body.Paging.Next == "" || after == "" || after == q.Get("after") {
			return out, nil
		}
		q.Set("after", after)
	}
}

func (c *GraphAPIClient) endpoint(accountID, edge string) string {
	u := c.baseURL + "/act_" + url.PathEscape(strings.TrimPrefix(accountID, "act_"))
	if edge != "" {
		u += "/" + edge
	}
	return u
}

// get performs one budgeted, rate limited GET and decodes the JSON body into
// out.
func (c *GraphAPIClient) get(ctx context.Context, api, endpoint string, q url.Values, out any) error {
	start := time.Now()

	if c.budget != nil {
		if err := c.budget.Acquire(ctx); err != nil {
			c.metrics.RecordExternalAPIFailure(api, "call_budget")
			return fmt.Errorf("call budget: %w", err)
		}
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure(api, "rate_limit")
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if c.accessToken != "" {
		q = cloneValues(q)
		q.Set("access_token", c.accessToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure(api, "network_error")
		return fmt.Errorf("%w: %s request failed: %v", domain.ErrUpstream, api, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordExternalAPICall(api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("%w: %s returned status %d: %s (code %d)", domain.ErrUpstream, api, resp.StatusCode, ge.Error.Message, ge.Error.Code)
		}
		return fmt.Errorf("%w: %s returned status %d", domain.ErrUpstream, api, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.RecordExternalAPIFailure(api, "json_parse")
		return fmt.Errorf("failed to parse %s response: %w", api, err)
	}

	c.metrics.RecordExternalAPICall(api, "success", duration)
	return nil
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
