package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrOffline indicates the backend could not be reached. Callers treat it as
// "work offline, try again later" rather than a hard failure.
var ErrOffline = errors.New("remote: backend unreachable")

// ErrLoginFailed indicates the backend rejected the credentials.
var ErrLoginFailed = errors.New("remote: login failed")

// NotAvailable is the availability status that marks a product for local
// removal. The backend is inconsistent about casing.
const NotAvailable = "not available"

// Client talks to the Falcon Stationery PHP backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Online reports whether the backend answers at all. It issues a cheap HEAD
// request so mutating flows can fail fast while disconnected.
func (c *Client) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/get_routes.php", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, target)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("remote: %s returned status %d", req.URL.Path, resp.StatusCode)
	}
	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("remote: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// MainCategories fetches all top-level categories.
func (c *Client) MainCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.getJSON(ctx, "get_main_categories.php", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SubCategories fetches the subcategories of one main category.
func (c *Client) SubCategories(ctx context.Context, categoryID int64) ([]SubCategory, error) {
	q := url.Values{"category_id": {fmt.Sprint(categoryID)}}
	var out []SubCategory
	if err := c.getJSON(ctx, "get_sub_categories.php", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Customers fetches every customer visible to the representative.
func (c *Client) Customers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	if err := c.getJSON(ctx, "get_customers.php", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Routes fetches all delivery routes.
func (c *Client) Routes(ctx context.Context) ([]Route, error) {
	var out []Route
	if err := c.getJSON(ctx, "get_routes.php", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductStamps fetches the change marker for every product the backend
// currently exposes.
func (c *Client) ProductStamps(ctx context.Context) ([]ProductStamp, error) {
	var out []ProductStamp
	if err := c.getJSON(ctx, "products-sync-check.php", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProductDetails fetches full payloads for the given product ids. The caller
// batches ids; the backend accepts the whole list in one POST.
func (c *Client) ProductDetails(ctx context.Context, ids []int64) ([]ProductDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	payload := struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids}
	var out []ProductDetail
	if err := c.postJSON(ctx, "product-details.php", payload, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].MainImage = SanitizeImageURL(out[i].MainImage)
		for j := range out[i].Variants {
			out[i].Variants[j].PhotoURL = SanitizeImageURL(out[i].Variants[j].PhotoURL)
		}
	}
	return out, nil
}

// Login authenticates a representative against the backend.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	var out LoginResult
	if err := c.postJSON(ctx, "login.php", payload, &out); err != nil {
		return nil, err
	}
	if !strings.EqualFold(out.Status, "success") {
		if out.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrLoginFailed, out.Message)
		}
		return nil, ErrLoginFailed
	}
	return &out, nil
}

// ValidateSession asks the backend whether the representative account is
// still active.
func (c *Client) ValidateSession(ctx context.Context, repID int64) (bool, error) {
	payload := struct {
		RepID int64 `json:"rep_id"`
	}{RepID: repID}
	var out struct {
		Status string `json:"status"`
	}
	if err := c.postJSON(ctx, "validate_session.php", payload, &out); err != nil {
		return false, err
	}
	return strings.EqualFold(out.Status, "success"), nil
}

// AddCustomer creates a customer on the backend and returns its server id.
func (c *Client) AddCustomer(ctx context.Context, nc NewCustomer) (int64, error) {
	var out struct {
		Success    bool      `json:"success"`
		Message    string    `json:"message"`
		CustomerID FlexInt64 `json:"customer_id"`
	}
	if err := c.postJSON(ctx, "add_customer.php", nc, &out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("remote: add customer rejected: %s", out.Message)
	}
	return out.CustomerID.Int64(), nil
}

// UpdateCustomer updates a synced customer on the backend.
func (c *Client) UpdateCustomer(ctx context.Context, customerID int64, nc NewCustomer) error {
	payload := struct {
		CustomerID int64 `json:"customer_id"`
		NewCustomer
	}{CustomerID: customerID, NewCustomer: nc}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "update_customer.php", payload, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("remote: update customer rejected: %s", out.Message)
	}
	return nil
}

// DeleteCustomer removes a synced customer on the backend.
func (c *Client) DeleteCustomer(ctx context.Context, customerID int64) error {
	payload := struct {
		CustomerID int64 `json:"customer_id"`
	}{CustomerID: customerID}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "delete_customer.php", payload, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("remote: delete customer rejected: %s", out.Message)
	}
	return nil
}

type uploadPayload struct {
	Summary UploadSummary `json:"summary"`
	Bills   []UploadBill  `json:"bills"`
}

// UploadBills pushes finalized bills without a day summary.
func (c *Client) UploadBills(ctx context.Context, summary UploadSummary, bills []UploadBill) (*UploadResult, error) {
	var out UploadResult
	if err := c.postJSON(ctx, "upload_bills_only.php", uploadPayload{Summary: summary, Bills: bills}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDailyData pushes the end-of-day summary together with any bills still
// pending.
func (c *Client) UploadDailyData(ctx context.Context, summary UploadSummary, bills []UploadBill) (*UploadResult, error) {
	var out UploadResult
	if err := c.postJSON(ctx, "upload_daily_data.php", uploadPayload{Summary: summary, Bills: bills}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SanitizeImageURL maps the backend's placeholder values for missing images
// to an empty string.
func SanitizeImageURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "null") || strings.EqualFold(trimmed, "Invalid URL") {
		return ""
	}
	return trimmed
}

// Unavailable reports whether a stamp marks the product as withdrawn.
func (s ProductStamp) Unavailable() bool {
	return strings.EqualFold(strings.TrimSpace(s.Availability), NotAvailable)
}
