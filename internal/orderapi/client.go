// Package orderapi is the HTTP client for the external order service. It is
// the coordinator's only mutation path: local state is always re-derived from
// the task objects these calls return, never from the request payloads.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fooddash/courierd/internal/models"
)

const requestTimeout = 10 * time.Second

// CredentialSource supplies the bearer credential for outbound calls. The
// client forwards it opaquely; an empty token sends no Authorization header.
type CredentialSource interface {
	Token() string
}

// Client talks to the order service REST API.
type Client struct {
	BaseURL    string
	Creds      CredentialSource
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient returns a Client with the standard request timeout.
func NewClient(baseURL string, creds CredentialSource, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Creds:      creds,
		HTTPClient: &http.Client{Timeout: requestTimeout},
		Logger:     logger,
	}
}

// loginResponse is the token endpoint's body.
type loginResponse struct {
	Token string              `json:"token"`
	Agent models.AgentProfile `json:"agent"`
}

// Login exchanges driver credentials for a bearer token and the agent
// profile. It is the one call made without a credential.
func (c *Client) Login(ctx context.Context, email, password string) (string, *models.AgentProfile, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := c.do(ctx, http.MethodPost, "/token/", body)
	if err != nil {
		return "", nil, &TransportError{Op: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, &TransportError{Op: "login", StatusCode: resp.StatusCode}
	}
	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, &TransportError{Op: "login", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out.Token, &out.Agent, nil
}

// ListAvailable returns the pool snapshot: orders ready for pickup with no
// driver attached.
func (c *Client) ListAvailable(ctx context.Context) ([]models.Task, error) {
	q := url.Values{
		"status":         {models.BackendStatusReadyForPickup},
		"driver__isnull": {"true"},
	}
	return c.listOrders(ctx, "list available", q)
}

// ListActiveFor returns the driver's current in-flight task, or nil when the
// driver holds none. A 404 from the service also means none.
func (c *Client) ListActiveFor(ctx context.Context, agentID string) (*models.Task, error) {
	q := url.Values{
		"driver_id": {agentID},
		"status__in": {strings.Join([]string{
			models.BackendStatusConfirmed,
			models.BackendStatusPickedUp,
			models.BackendStatusOnTheWay,
		}, ",")},
	}
	tasks, err := c.listOrders(ctx, "list active", q)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	t := tasks[0]
	return &t, nil
}

// ListHistoryFor returns the driver's terminal tasks, most recent first as
// the service orders them.
func (c *Client) ListHistoryFor(ctx context.Context, agentID string) ([]models.Task, error) {
	q := url.Values{
		"driver_id": {agentID},
		"status__in": {strings.Join([]string{
			models.BackendStatusDelivered,
			models.BackendStatusCancelled,
			models.BackendStatusCancelledByUser,
			models.BackendStatusCancelledByKitchen,
			models.BackendStatusCancelledByDriver,
			models.BackendStatusFailedDelivery,
		}, ",")},
	}
	return c.listOrders(ctx, "list history", q)
}

// Accept claims an unassigned order for the given driver. The server is
// authoritative for the race between drivers: a rejection comes back as a
// StaleTaskError, a success as the now-assigned task.
func (c *Client) Accept(ctx context.Context, taskID, agentID string) (*models.Task, error) {
	body, _ := json.Marshal(map[string]string{
		"driver": agentID,
		"status": models.BackendStatusConfirmed,
	})
	resp, err := c.do(ctx, http.MethodPatch, "/orders/"+taskID+"/", body)
	if err != nil {
		return nil, &TransportError{Op: "accept task", Err: err}
	}
	defer resp.Body.Close()

	if staleStatus(resp.StatusCode) {
		return nil, &StaleTaskError{TaskID: taskID, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "accept task", StatusCode: resp.StatusCode}
	}
	return c.decodeTask(resp, "accept task")
}

// UpdateStatus asks the service to move an order to the given backend status
// and returns the authoritative updated task.
func (c *Client) UpdateStatus(ctx context.Context, taskID, backendStatus string) (*models.Task, error) {
	body, _ := json.Marshal(map[string]string{"status": backendStatus})
	resp, err := c.do(ctx, http.MethodPatch, "/orders/"+taskID+"/", body)
	if err != nil {
		return nil, &TransportError{Op: "update status", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "update status", StatusCode: resp.StatusCode}
	}
	return c.decodeTask(resp, "update status")
}

// UpdateAvailability flips the driver's online flag on their profile.
func (c *Client) UpdateAvailability(ctx context.Context, agentID string, online bool) error {
	body, _ := json.Marshal(map[string]bool{"is_online": online})
	resp, err := c.do(ctx, http.MethodPatch, "/driver-profiles/"+agentID+"/availability/", body)
	if err != nil {
		return &TransportError{Op: "update availability", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{Op: "update availability", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) listOrders(ctx context.Context, op string, q url.Values) ([]models.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, "/orders/?"+q.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}
	var wire []wireTask
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	tasks := make([]models.Task, 0, len(wire))
	for _, w := range wire {
		t := taskFromWire(w)
		if t.Status == models.StatusUnknown {
			c.Logger.Warn("unrecognized order status from backend", "task_id", t.ID, "status", w.Status)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (c *Client) decodeTask(resp *http.Response, op string) (*models.Task, error) {
	var w wireTask
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	t := taskFromWire(w)
	if t.Status == models.StatusUnknown {
		c.Logger.Warn("unrecognized order status from backend", "task_id", t.ID, "status", w.Status)
	}
	return &t, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.Creds != nil {
		if tok := c.Creds.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return c.HTTPClient.Do(req)
}
