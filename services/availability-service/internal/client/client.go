package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindcare/platform/libs/httpx"
	"github.com/mindcare/platform/services/availability-service/internal/availability"
	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError is a non-2xx response from the availability API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("availability api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the availability HTTP API on behalf of one therapist.
type Client struct {
	baseURL     string
	therapistID string
	http        *http.Client
}

func New(baseURL, therapistID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		therapistID: therapistID,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

var _ schedule.Creator = (*Client)(nil)

func (c *Client) List(ctx context.Context) ([]schedule.Slot, error) {
	var out struct {
		Slots []schedule.Slot `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/availability", nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// CreateAvailability creates one slot. Validation failures come back as ErrValidation.
func (c *Client) CreateAvailability(ctx context.Context, in schedule.SlotInput) (schedule.Slot, error) {
	var out availability.CreateResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/availability", in, &out); err != nil {
		return schedule.Slot{}, err
	}
	return out.Slot, nil
}

func (c *Client) Conflicts(ctx context.Context) (availability.ConflictReport, error) {
	var out availability.ConflictReport
	err := c.do(ctx, http.MethodGet, "/api/v1/availability/conflicts", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Therapist-Id", c.therapistID)
	req.Header.Set(httpx.RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %w", schedule.ErrValidation, statusErr)
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
