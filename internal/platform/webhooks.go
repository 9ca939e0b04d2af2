package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/rflorenc/asana-automation-bridge/internal/models"
)

// HookFilter restricts which events a webhook delivers.
type HookFilter struct {
	ResourceType    string   `json:"resource_type,omitempty"`
	ResourceSubtype string   `json:"resource_subtype,omitempty"`
	Action          string   `json:"action,omitempty"`
	Fields          []string `json:"fields,omitempty"`
}

// HookRequest is the payload for creating a webhook on Resource that
// delivers to Target.
type HookRequest struct {
	Resource string       `json:"resource"`
	Target   string       `json:"target"`
	Filters  []HookFilter `json:"filters,omitempty"`
}

// CreateHook posts a new webhook. Asana calls Target with an X-Hook-Secret
// header before it answers this request; the caller must be ready to echo
// it back or creation fails remotely.
func (c *Client) CreateHook(ctx context.Context, req HookRequest) (*models.Webhook, error) {
	data, err := c.call(ctx, "webhooks", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]any{"data": req},
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("webhooks: empty response")
	}
	var hook models.Webhook
	if err := json.Unmarshal(data, &hook); err != nil {
		return nil, fmt.Errorf("parsing webhook: %w", err)
	}
	return &hook, nil
}

// DeleteHook removes a webhook. It is best-effort: failures are logged and
// not returned. A webhook that is already gone counts as deleted.
func (c *Client) DeleteHook(ctx context.Context, hookID string) {
	if err := c.deleteHook(ctx, hookID); err != nil {
		c.logger.Warn("deleting webhook failed", "hook", hookID, "error", err)
	}
}

// DeleteHooks removes several webhooks and reports every failure together.
func (c *Client) DeleteHooks(ctx context.Context, hookIDs ...string) error {
	var result *multierror.Error
	for _, id := range hookIDs {
		if err := c.deleteHook(ctx, id); err != nil {
			result = multierror.Append(result, fmt.Errorf("webhook %s: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

func (c *Client) deleteHook(ctx context.Context, hookID string) error {
	_, err := c.call(ctx, "webhooks/"+hookID, RequestOptions{Method: http.MethodDelete})
	if errors.Is(err, ErrNotFound) {
		return nil // already gone
	}
	return err
}
