// Package platform implements the messaging-platform bindings: the
// HTTP API client and the RTM websocket connection.
package platform

import (
	"context"

	"github.com/zomco/hubot-heyodo/internal/bus"
)

// VChannel types as reported by vchannel.info.
const (
	VChannelNormal  = "normal"  // channel
	VChannelSession = "session" // ad-hoc group
	VChannelP2P     = "p2p"     // direct conversation
)

// VChannel is the detail record for any conversation locus.
type VChannel struct {
	VChannelID string `json:"vchannel_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	IsMember   bool   `json:"is_member"`
}

// Channel is one entry of the organization's channel list.
type Channel struct {
	VChannelID string `json:"vchannel_id"`
	Name       string `json:"name"`
	IsMember   bool   `json:"is_member"`
}

// User is one entry of the organization's user list.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// API is the outbound surface the relay core needs from the platform.
type API interface {
	// VChannelInfo fetches detail for any conversation locus.
	VChannelInfo(ctx context.Context, vchannelID string) (VChannel, error)

	// ListChannels lists the organization's channels.
	ListChannels(ctx context.Context) ([]Channel, error)

	// ListUsers lists the organization's users.
	ListUsers(ctx context.Context) ([]User, error)

	// CreateP2P creates (or reuses) the direct conversation with a
	// user and returns its vchannel id.
	CreateP2P(ctx context.Context, userID string) (string, error)

	// SendImpersonated delivers text as an in-place reply threaded to
	// messageKey in vchannelID, framed as coming from that locus.
	SendImpersonated(ctx context.Context, vchannelID, messageKey, uid, text string) error

	// SendAttachment delivers text plus attachments in the bot's voice.
	SendAttachment(ctx context.Context, vchannelID, text string, attachments []bus.Attachment) error

	// SendPlain delivers a simple text message in the bot's voice.
	SendPlain(ctx context.Context, vchannelID, text string) error
}
