package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zomco/hubot-heyodo/internal/bus"
)

// ReplyWriter writes an impersonated reply frame. Implemented by the
// RTM connection; sends fail while it is down.
type ReplyWriter interface {
	WriteReply(vchannelID, messageKey, uid, text string) error
}

// Client is the HTTP implementation of API. Impersonated sends are
// delegated to the RTM connection via SetReplyWriter.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu     sync.RWMutex
	writer ReplyWriter
}

// NewClient creates a Client for the given API base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetReplyWriter attaches the RTM connection used for impersonated sends.
func (c *Client) SetReplyWriter(w ReplyWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// post calls one API method with token auth and decodes the response.
func (c *Client) post(ctx context.Context, method string, params map[string]any, out any) error {
	payload := map[string]any{"token": c.token}
	for k, v := range params {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s: %s", method, apiErr.Error)
		}
		return fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	return nil
}

// VChannelInfo implements API.
func (c *Client) VChannelInfo(ctx context.Context, vchannelID string) (VChannel, error) {
	var v VChannel
	err := c.post(ctx, "vchannel.info", map[string]any{"vchannel_id": vchannelID}, &v)
	return v, err
}

// ListChannels implements API.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var channels []Channel
	err := c.post(ctx, "channel.list", nil, &channels)
	return channels, err
}

// ListUsers implements API.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := c.post(ctx, "user.list", nil, &users)
	return users, err
}

// CreateP2P implements API.
func (c *Client) CreateP2P(ctx context.Context, userID string) (string, error) {
	var p2p struct {
		VChannelID string `json:"vchannel_id"`
	}
	if err := c.post(ctx, "p2p.create", map[string]any{"user_id": userID}, &p2p); err != nil {
		return "", err
	}
	if p2p.VChannelID == "" {
		return "", fmt.Errorf("p2p.create: empty vchannel id")
	}
	return p2p.VChannelID, nil
}

// SendImpersonated implements API via the RTM connection.
func (c *Client) SendImpersonated(_ context.Context, vchannelID, messageKey, uid, text string) error {
	c.mu.RLock()
	w := c.writer
	c.mu.RUnlock()
	if w == nil {
		return fmt.Errorf("impersonated send: rtm not connected")
	}
	return w.WriteReply(vchannelID, messageKey, uid, text)
}

// SendAttachment implements API.
func (c *Client) SendAttachment(ctx context.Context, vchannelID, text string, attachments []bus.Attachment) error {
	return c.post(ctx, "message.create", map[string]any{
		"vchannel_id": vchannelID,
		"text":        text,
		"attachments": attachments,
	}, nil)
}

// SendPlain implements API.
func (c *Client) SendPlain(ctx context.Context, vchannelID, text string) error {
	return c.post(ctx, "message.create", map[string]any{
		"vchannel_id": vchannelID,
		"text":        text,
	}, nil)
}
