package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forerelic/truss/internal/auth"
	"github.com/forerelic/truss/internal/permission"
	"github.com/forerelic/truss/internal/workspace"
)

const defaultTimeout = 10 * time.Second

// Client is the HTTP read-model client for the external auth provider.
// It forwards the caller's bearer token from the request context, so a
// single Client instance serves all users. It never mutates sessions.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ workspace.SessionProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient constructs a Client for the auth provider at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire shapes of the auth provider's read model.

type sessionPayload struct {
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
}

type memberPayload struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

type organizationPayload struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Members         []memberPayload `json:"members"`
	AllowedDomains  []string        `json:"allowedDomains"`
	AutoJoinEnabled bool            `json:"autoJoinEnabled"`
}

type organizationSummaryPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

// Session returns the signed-in user, or nil when the provider reports
// no session.
func (c *Client) Session(ctx context.Context) (*workspace.Session, error) {
	var payload *sessionPayload
	if err := c.get(ctx, "/get-session", &payload); err != nil {
		return nil, err
	}
	if payload == nil || payload.User == nil || payload.User.ID == "" {
		return nil, nil
	}
	return &workspace.Session{UserID: payload.User.ID}, nil
}

// ActiveOrganization returns the active organization with its member
// list, or nil for the personal workspace.
func (c *Client) ActiveOrganization(ctx context.Context) (*workspace.Organization, error) {
	var payload *organizationPayload
	if err := c.get(ctx, "/organization/get-full-organization", &payload); err != nil {
		return nil, err
	}
	if payload == nil || payload.ID == "" {
		return nil, nil
	}

	org := &workspace.Organization{
		ID:              payload.ID,
		Name:            payload.Name,
		Slug:            payload.Slug,
		AllowedDomains:  payload.AllowedDomains,
		AutoJoinEnabled: payload.AutoJoinEnabled,
	}
	for _, m := range payload.Members {
		role, err := permission.ParseRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", m.ID, err)
		}
		org.Members = append(org.Members, workspace.Member{
			ID:             m.ID,
			UserID:         m.UserID,
			OrganizationID: m.OrganizationID,
			Role:           role,
			CreatedAt:      m.CreatedAt,
		})
	}
	return org, nil
}

// Organizations lists the workspaces available to the signed-in user.
func (c *Client) Organizations(ctx context.Context) ([]workspace.OrganizationSummary, error) {
	var payload []organizationSummaryPayload
	if err := c.get(ctx, "/organization/list", &payload); err != nil {
		return nil, err
	}
	out := make([]workspace.OrganizationSummary, 0, len(payload))
	for _, org := range payload {
		role := org.Role
		if role == "" {
			role = string(permission.RoleMember)
		}
		out = append(out, workspace.OrganizationSummary{
			ID:   org.ID,
			Name: org.Name,
			Slug: org.Slug,
			Role: role,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth provider request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound {
		// The provider reports "no such read model" for signed-out
		// callers; treat both as an empty result.
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("auth provider %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
