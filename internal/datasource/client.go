package datasource

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rflorenc/facility-workbench/internal/models"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

// Client is the shared HTTP client for the facility backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates a Client for a backend. When tokens is nil the backend's
// static token is used.
func NewClient(b *models.Backend, tokens TokenSource) *Client {
	transport := &http.Transport{}
	if b.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if b.CACert != "" {
		caCertPool := x509.NewCertPool()
		if caCertPool.AppendCertsFromPEM([]byte(b.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
		}
	}
	if tokens == nil {
		tokens = staticToken(b.Token)
	}
	return &Client{
		baseURL: b.APIURL(),
		tokens:  tokens,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Upload is a staged file sent as one multipart part.
type Upload struct {
	Field    string
	Path     string
	Filename string
}

func (c *Client) authorize(req *http.Request) {
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
}

// do performs a request and classifies non-2xx responses into typed errors.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) ([]byte, int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &FetchError{Method: method, Path: path, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Method: method, Path: path, Status: resp.StatusCode, Message: "reading response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp.StatusCode, classify(method, path, resp.StatusCode, data)
	}
	return data, resp.StatusCode, nil
}

// Get performs an authenticated GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, params, nil, "")
	return body, err
}

// Post performs an authenticated POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	return c.sendJSON(ctx, http.MethodPost, path, payload)
}

// Put performs an authenticated PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	return c.sendJSON(ctx, http.MethodPut, path, payload)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, nil, bodyReader, "application/json")
}

// SendMultipart sends fields and staged files as multipart/form-data. PUT is
// tunnelled through POST with _method=PUT since many backends only parse
// multipart bodies on POST.
func (c *Client) SendMultipart(ctx context.Context, method, path string, fields models.Item, uploads []Upload) ([]byte, int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if v == nil {
			continue
		}
		if err := mw.WriteField(k, models.Item{k: v}.Text(k)); err != nil {
			return nil, 0, fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	for _, up := range uploads {
		if err := writeFilePart(mw, up); err != nil {
			return nil, 0, err
		}
	}
	if method != http.MethodPost {
		if err := mw.WriteField("_method", method); err != nil {
			return nil, 0, fmt.Errorf("writing method override: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, 0, fmt.Errorf("closing multipart body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
}

func writeFilePart(mw *multipart.Writer, up Upload) error {
	f, err := os.Open(up.Path)
	if err != nil {
		return fmt.Errorf("opening upload %s: %w", up.Field, err)
	}
	defer f.Close()
	name := up.Filename
	if name == "" {
		name = filepath.Base(up.Path)
	}
	part, err := mw.CreateFormFile(up.Field, name)
	if err != nil {
		return fmt.Errorf("creating part %s: %w", up.Field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying upload %s: %w", up.Field, err)
	}
	return nil
}

// Delete performs an authenticated DELETE request. A 404 is reported as
// *NotFoundError so callers can treat a repeated delete as recoverable.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, _, err := c.do(ctx, http.MethodDelete, path, nil, nil, "")
	return err
}

// Ping checks connectivity by hitting the given path.
func (c *Client) Ping(ctx context.Context, path string) error {
	_, err := c.Get(ctx, path, nil)
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
