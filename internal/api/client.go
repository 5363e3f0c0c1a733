package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "MUE_HTTP_TIMEOUT"
	apiTokenEnvKey     = "MUE_API_TOKEN"
)

// Client is a simple HTTP client for the mue API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) ListBackgrounds(ctx context.Context, sort string) ([]BackgroundResponse, error) {
	var resp []BackgroundResponse
	query := url.Values{}
	if sort != "" {
		query.Set("sort", sort)
	}
	err := c.do(ctx, http.MethodGet, "/v1/backgrounds", query, nil, &resp)
	return resp, err
}

func (c *Client) GetBackground(ctx context.Context, id int64) (BackgroundResponse, error) {
	var resp BackgroundResponse
	err := c.do(ctx, http.MethodGet, backgroundPath(id), nil, nil, &resp)
	return resp, err
}

// UploadFile is one file sent to Upload.
type UploadFile struct {
	Name      string
	MediaType string
	Body      io.Reader
}

// Upload sends files as one multipart request.
func (c *Client) Upload(ctx context.Context, files []UploadFile, folder string) (UploadResponse, error) {
	var resp UploadResponse

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		if err := mw.WriteField("folder", folder); err != nil {
			return resp, err
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, file.Name))
		if file.MediaType != "" {
			header.Set("Content-Type", file.MediaType)
		}
		part, err := mw.CreatePart(header)
		if err != nil {
			return resp, err
		}
		if _, err := io.Copy(part, file.Body); err != nil {
			return resp, err
		}
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/backgrounds", &buf)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.send(req, &resp)
	return resp, err
}

func (c *Client) AddURL(ctx context.Context, req AddURLRequest) (BackgroundResponse, error) {
	var resp BackgroundResponse
	err := c.do(ctx, http.MethodPost, "/v1/backgrounds/url", nil, req, &resp)
	return resp, err
}

func (c *Client) Pick(ctx context.Context, offline bool) (PickResponse, error) {
	var resp PickResponse
	query := url.Values{}
	if offline {
		query.Set("offline", "true")
	}
	err := c.do(ctx, http.MethodGet, "/v1/backgrounds/random", query, nil, &resp)
	return resp, err
}

func (c *Client) DeleteBackgrounds(ctx context.Context, ids []int64) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodPost, "/v1/backgrounds/delete", nil, IDsRequest{IDs: ids}, &resp)
	return resp, err
}

// DeleteAt deletes backgrounds by their position in the list sorted by sort.
func (c *Client) DeleteAt(ctx context.Context, indices []int, sort string) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodPost, "/v1/backgrounds/delete", nil, IDsRequest{Indices: indices, Sort: sort}, &resp)
	return resp, err
}

func (c *Client) DeleteBackground(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, backgroundPath(id), nil, nil, nil)
}

func (c *Client) ClearBackgrounds(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/backgrounds", nil, nil, nil)
}

func (c *Client) UpdateBackground(ctx context.Context, id int64, req BackgroundUpdateRequest) (BackgroundResponse, error) {
	var resp BackgroundResponse
	err := c.do(ctx, http.MethodPatch, backgroundPath(id), nil, req, &resp)
	return resp, err
}

func (c *Client) Backfill(ctx context.Context) (BackfillResponse, error) {
	var resp BackfillResponse
	err := c.do(ctx, http.MethodPost, "/v1/backgrounds/backfill", nil, nil, &resp)
	return resp, err
}

func (c *Client) Storage(ctx context.Context) (StorageResponse, error) {
	var resp StorageResponse
	err := c.do(ctx, http.MethodGet, "/v1/storage", nil, nil, &resp)
	return resp, err
}

func (c *Client) RequestPersistence(ctx context.Context) (PersistResponse, error) {
	var resp PersistResponse
	err := c.do(ctx, http.MethodPost, "/v1/storage/persist", nil, nil, &resp)
	return resp, err
}

// Export streams the YAML backup manifest to a writer.
func (c *Client) Export(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/export", nil)
	if err != nil {
		return err
	}
	c.setAuthHeader(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// Import uploads a YAML backup manifest.
func (c *Client) Import(ctx context.Context, manifest io.Reader) (ImportResponse, error) {
	var resp ImportResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/import", manifest)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", "application/yaml")
	err = c.send(req, &resp)
	return resp, err
}

func (c *Client) ImportLegacy(ctx context.Context, value string) (LegacyImportResponse, error) {
	var resp LegacyImportResponse
	err := c.do(ctx, http.MethodPost, "/v1/legacy", nil, LegacyImportRequest{Value: value}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func backgroundPath(id int64) string {
	return "/v1/backgrounds/" + strconv.FormatInt(id, 10)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
