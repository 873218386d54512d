// Package linkedin talks to the LinkedIn automation provider's HTTP API.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outreach_backend/internal/channel"
	"outreach_backend/internal/prospects/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

type sendMessageRequest struct {
	AccountID     string `json:"account_id"`
	ChannelUserID string `json:"attendee_id"`
	Text          string `json:"text"`
}

type sendInvitationRequest struct {
	AccountID     string `json:"account_id"`
	ChannelUserID string `json:"provider_id"`
	Message       string `json:"message,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type invitationItem struct {
	ChannelUserID string    `json:"provider_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type relationItem struct {
	ChannelUserID string    `json:"provider_id"`
	ConnectedAt   time.Time `json:"connected_at"`
}

type listResponse[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor"`
}

// Compile-time check that Client covers the full provider surface
var _ channel.Provider = (*Client)(nil)

func NewClient(cfg config.ChannelConfig, log *logger.Logger) *Client {
	if cfg.GetChannelAPIURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetChannelAPIURL(), "/"),
		apiKey:  cfg.GetChannelAPIKey(),
		http:    &http.Client{Timeout: cfg.GetChannelTimeout()},
		log:     log,
	}
}

// SendMessage delivers a follow-up message to an existing connection.
// LinkedIn messages carry no subject; it is ignored here.
func (c *Client) SendMessage(ctx context.Context, p domain.Prospect, _, body string) (string, error) {
	payload := sendMessageRequest{
		AccountID:     p.AccountID,
		ChannelUserID: p.ChannelUserID,
		Text:          body,
	}

	var resp sendResponse
	if err := c.post(ctx, "/api/v1/chats/messages", payload, &resp); err != nil {
		return "", err
	}

	c.log.Info("linkedin message sent", "prospect_id", p.ID.String(), "message_id", resp.ID)
	return resp.ID, nil
}

// SendInvitation issues the initial connection request.
func (c *Client) SendInvitation(ctx context.Context, p domain.Prospect, note string) (string, error) {
	payload := sendInvitationRequest{
		AccountID:     p.AccountID,
		ChannelUserID: p.ChannelUserID,
		Message:       note,
	}

	var resp sendResponse
	if err := c.post(ctx, "/api/v1/users/invite", payload, &resp); err != nil {
		return "", err
	}

	c.log.Info("linkedin invitation sent", "prospect_id", p.ID.String(), "invitation_id", resp.ID)
	return resp.ID, nil
}

// ListPendingInvitations returns invitations the provider still reports
// as unanswered for the account.
func (c *Client) ListPendingInvitations(ctx context.Context, accountID string) ([]channel.Invitation, error) {
	path := "/api/v1/users/invitations?status=pending&account_id=" + url.QueryEscape(accountID)

	var resp listResponse[invitationItem]
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	invitations := make([]channel.Invitation, 0, len(resp.Items))
	for _, item := range resp.Items {
		invitations = append(invitations, channel.Invitation{
			ChannelUserID: item.ChannelUserID,
			SentAt:        item.CreatedAt,
		})
	}
	return invitations, nil
}

// ListRelations returns the account's established connections.
func (c *Client) ListRelations(ctx context.Context, accountID string) ([]channel.Relation, error) {
	path := "/api/v1/users/relations?account_id=" + url.QueryEscape(accountID)

	var resp listResponse[relationItem]
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	relations := make([]channel.Relation, 0, len(resp.Items))
	for _, item := range resp.Items {
		relations = append(relations, channel.Relation{
			ChannelUserID: item.ChannelUserID,
			ConnectedAt:   item.ConnectedAt,
		})
	}
	return relations, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal linkedin payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "linkedin provider unreachable", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		detail := strings.TrimSpace(string(data))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return apperr.RateLimited(fmt.Sprintf("linkedin provider rate limited: %s", detail))
		case resp.StatusCode >= http.StatusInternalServerError:
			return apperr.Unavailable(fmt.Sprintf("linkedin provider returned %d: %s", resp.StatusCode, detail))
		default:
			return fmt.Errorf("linkedin provider returned %d: %s", resp.StatusCode, detail)
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
