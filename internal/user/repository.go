// AngelaMos | 2026
// repository.go

package user

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/user-admin/internal/core"
	"github.com/carterperez-dev/templates/user-admin/internal/metrics"
)

// Repository is the remote user API. Implementations are plain transport:
// no caching, retries or batching.
type Repository interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// APIError describes a non-2xx response or a transport failure. It wraps
// core.ErrNotFound for 404 and core.ErrNetwork otherwise.
type APIError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.Path, e.Status, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

const maxErrorBody = 4 << 10

type APIClient struct {
	baseURL *url.URL
	http    *http.Client
	tracer  trace.Tracer
}

func NewAPIClient(baseURL string, client *http.Client, tracer trace.Tracer) (*APIClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("base url %q: %w", baseURL, core.ErrInvalidInput)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if tracer == nil {
		tracer = otel.Tracer("user-api")
	}

	return &APIClient{baseURL: u, http: client, tracer: tracer}, nil
}

func (c *APIClient) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

func (c *APIClient) Get(ctx context.Context, id string) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, nil, &u); err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Create posts u without its id; the server assigns id and createdAt.
func (c *APIClient) Create(ctx context.Context, u User) (User, error) {
	u.ID = ""

	var created User
	if err := c.do(ctx, http.MethodPost, "/user", nil, u, &created); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (c *APIClient) Update(ctx context.Context, id string, patch Patch) (User, error) {
	var updated User
	if err := c.do(ctx, http.MethodPut, userPath(id), nil, patch, &updated); err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (c *APIClient) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, userPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Ping issues the cheapest list request the API supports.
func (c *APIClient) Ping(ctx context.Context) error {
	q := url.Values{"page": {"1"}, "limit": {"1"}}
	if err := c.do(ctx, http.MethodGet, "/user", q, nil, nil); err != nil {
		return fmt.Errorf("ping user api: %w", err)
	}
	return nil
}

func (c *APIClient) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, out any,
) error {
	ctx, span := c.tracer.Start(ctx, "userapi "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, span, method, path, query, body, out)
	core.RecordError(span, err)
	return err
}

func (c *APIClient) roundTrip(
	ctx context.Context,
	span trace.Span,
	method, path string,
	query url.Values,
	body, out any,
) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(method, "error").Inc()
		return &APIError{
			Method: method,
			Path:   path,
			Err:    fmt.Errorf("%w: %w", core.ErrNetwork, err),
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	metrics.UpstreamRequestsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(method, path, resp)
	}

	if out == nil {
		//nolint:errcheck // drain for connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: decode response: %w", core.ErrNetwork, err),
		}
	}
	return nil
}

func responseError(method, path string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	sentinel := core.ErrNetwork
	if resp.StatusCode == http.StatusNotFound {
		sentinel = core.ErrNotFound
	}

	return &APIError{
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Err:    fmt.Errorf("%w: %s", sentinel, detail),
	}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func userPath(id string) string {
	return "/user/" + id
}

var _ Repository = (*APIClient)(nil)
