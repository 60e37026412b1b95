package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pavkata12/app/internal/models"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the billing server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the server
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client talks to the billing server REST API
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithToken sends the operator token as a bearer credential
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at endpoint, e.g. http://localhost:5000
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the server base URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func idPath(format string, id int64) string {
	return apiPrefix + fmt.Sprintf(format, id)
}

// Token is an issued operator token
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken exchanges the operator key for a token
func (c *Client) IssueToken(ctx context.Context, operator, key string) (*Token, error) {
	var token Token
	body := map[string]string{"operator": operator, "key": key}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/auth/token", nil, body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// Health returns the status reported by /health
func (c *Client) Health(ctx context.Context) (string, error) {
	var out map[string]string
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return "", err
	}
	return out["status"], nil
}

// Computers

func (c *Client) ListComputers(ctx context.Context) ([]*models.Computer, error) {
	var computers []*models.Computer
	err := c.do(ctx, http.MethodGet, apiPrefix+"/computers", nil, nil, &computers)
	return computers, err
}

func (c *Client) RegisterComputer(ctx context.Context, name, ipAddress string) (*models.Computer, error) {
	var computer models.Computer
	body := map[string]string{"name": name, "ip_address": ipAddress}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/computers", nil, body, &computer); err != nil {
		return nil, err
	}
	return &computer, nil
}

func (c *Client) GetComputer(ctx context.Context, id int64) (*models.Computer, error) {
	var computer models.Computer
	if err := c.do(ctx, http.MethodGet, idPath("/computers/%d", id), nil, nil, &computer); err != nil {
		return nil, err
	}
	return &computer, nil
}

func (c *Client) UpdateComputerStatus(ctx context.Context, id int64, status models.ComputerStatus) (*models.Computer, error) {
	var computer models.Computer
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPut, idPath("/computers/%d/status", id), nil, body, &computer); err != nil {
		return nil, err
	}
	return &computer, nil
}

// Heartbeat reports a station as alive. An empty address lets the server use the caller's address.
func (c *Client) Heartbeat(ctx context.Context, ipAddress string) (*models.Computer, error) {
	var computer models.Computer
	body := map[string]string{}
	if ipAddress != "" {
		body["ip_address"] = ipAddress
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/computers/heartbeat", nil, body, &computer); err != nil {
		return nil, err
	}
	return &computer, nil
}

func (c *Client) GetActiveSession(ctx context.Context, computerID int64) (*models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodGet, idPath("/computers/%d/session", computerID), nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ComputerUsage returns per-day usage. Empty dates use the server defaults.
func (c *Client) ComputerUsage(ctx context.Context, computerID int64, from, to string) ([]*models.UsageDay, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	var days []*models.UsageDay
	err := c.do(ctx, http.MethodGet, idPath("/computers/%d/usage", computerID), q, nil, &days)
	return days, err
}

// Tariffs

// TariffRequest creates or replaces a tariff
type TariffRequest struct {
	Name         string          `json:"name"`
	PricePerHour decimal.Decimal `json:"price_per_hour"`
	Description  string          `json:"description"`
}

func (c *Client) ListTariffs(ctx context.Context, includeInactive bool) ([]*models.Tariff, error) {
	q := url.Values{}
	if includeInactive {
		q.Set("all", "true")
	}
	var tariffs []*models.Tariff
	err := c.do(ctx, http.MethodGet, apiPrefix+"/tariffs", q, nil, &tariffs)
	return tariffs, err
}

func (c *Client) GetTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := c.do(ctx, http.MethodGet, idPath("/tariffs/%d", id), nil, nil, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (c *Client) CreateTariff(ctx context.Context, req TariffRequest) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/tariffs", nil, req, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (c *Client) UpdateTariff(ctx context.Context, id int64, req TariffRequest) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := c.do(ctx, http.MethodPut, idPath("/tariffs/%d", id), nil, req, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (c *Client) DeactivateTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := c.do(ctx, http.MethodPost, idPath("/tariffs/%d/deactivate", id), nil, nil, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

func (c *Client) ActivateTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	var tariff models.Tariff
	if err := c.do(ctx, http.MethodPost, idPath("/tariffs/%d/activate", id), nil, nil, &tariff); err != nil {
		return nil, err
	}
	return &tariff, nil
}

// Sessions

// SessionQuery filters ListSessions. Zero values are not sent.
type SessionQuery struct {
	ComputerID int64
	Status     models.SessionStatus
	Limit      int
}

func (q SessionQuery) values() url.Values {
	v := url.Values{}
	if q.ComputerID > 0 {
		v.Set("computer_id", strconv.FormatInt(q.ComputerID, 10))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// ListActiveSessions returns active sessions with computer and tariff names
func (c *Client) ListActiveSessions(ctx context.Context) ([]*models.ActiveSessionView, error) {
	q := url.Values{"status": {string(models.SessionActive)}}
	var sessions []*models.ActiveSessionView
	err := c.do(ctx, http.MethodGet, apiPrefix+"/sessions", q, nil, &sessions)
	return sessions, err
}

// ListSessions returns sessions newest first. A query with only Status set to
// active is answered with the joined view, so use ListActiveSessions for that.
func (c *Client) ListSessions(ctx context.Context, query SessionQuery) ([]*models.Session, error) {
	if query.Status == models.SessionActive && query.ComputerID == 0 {
		views, err := c.ListActiveSessions(ctx)
		if err != nil {
			return nil, err
		}
		sessions := make([]*models.Session, 0, len(views))
		for _, v := range views {
			s := v.Session
			sessions = append(sessions, &s)
		}
		if query.Limit > 0 && len(sessions) > query.Limit {
			sessions = sessions[:query.Limit]
		}
		return sessions, nil
	}

	var sessions []*models.Session
	err := c.do(ctx, http.MethodGet, apiPrefix+"/sessions", query.values(), nil, &sessions)
	return sessions, err
}

func (c *Client) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodGet, idPath("/sessions/%d", id), nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// OpenSession starts a session. A nil start lets the server use its clock.
func (c *Client) OpenSession(ctx context.Context, computerID, tariffID int64, start *time.Time) (*models.Session, error) {
	body := struct {
		ComputerID int64      `json:"computer_id"`
		TariffID   int64      `json:"tariff_id"`
		StartTime  *time.Time `json:"start_time,omitempty"`
	}{ComputerID: computerID, TariffID: tariffID, StartTime: start}

	var session models.Session
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/sessions", nil, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseSession ends and bills a session. A nil end lets the server use its clock.
func (c *Client) CloseSession(ctx context.Context, id int64, end *time.Time) (*models.Session, error) {
	body := struct {
		EndTime *time.Time `json:"end_time,omitempty"`
	}{EndTime: end}

	var session models.Session
	if err := c.do(ctx, http.MethodPost, idPath("/sessions/%d/close", id), nil, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) CancelSession(ctx context.Context, id int64) (*models.Session, error) {
	var session models.Session
	if err := c.do(ctx, http.MethodPost, idPath("/sessions/%d/cancel", id), nil, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Payments

func (c *Client) RecordPayment(ctx context.Context, sessionID int64, amount decimal.Decimal, method string) (*models.Payment, error) {
	body := struct {
		Amount        decimal.Decimal `json:"amount"`
		PaymentMethod string          `json:"payment_method"`
	}{Amount: amount, PaymentMethod: method}

	var payment models.Payment
	if err := c.do(ctx, http.MethodPost, idPath("/sessions/%d/payments", sessionID), nil, body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) ListPayments(ctx context.Context, sessionID int64) ([]*models.Payment, error) {
	var payments []*models.Payment
	err := c.do(ctx, http.MethodGet, idPath("/sessions/%d/payments", sessionID), nil, nil, &payments)
	return payments, err
}

func (c *Client) PaymentSummary(ctx context.Context, sessionID int64) (*models.PaymentSummary, error) {
	var summary models.PaymentSummary
	if err := c.do(ctx, http.MethodGet, idPath("/sessions/%d/summary", sessionID), nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Settings and reports

func (c *Client) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	err := c.do(ctx, http.MethodGet, apiPrefix+"/settings", nil, nil, &settings)
	return settings, err
}

func (c *Client) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/settings/"+url.PathEscape(key), nil, nil, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

func (c *Client) SetSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	var setting models.Setting
	body := map[string]string{"value": value}
	if err := c.do(ctx, http.MethodPut, apiPrefix+"/settings/"+url.PathEscape(key), nil, body, &setting); err != nil {
		return nil, err
	}
	return &setting, nil
}

// DailyReport returns the report for date (YYYY-MM-DD), or today when empty
func (c *Client) DailyReport(ctx context.Context, date string) (*models.DailyReport, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var report models.DailyReport
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/reports/daily", q, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
