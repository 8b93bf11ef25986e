package relay

import (
	"context"
	"fmt"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/platform"
	"github.com/zomco/hubot-heyodo/internal/session"
)

// Dispatcher emits outbound deliveries. Every method produces at most
// one outbound message; on any precondition failure nothing is sent.
type Dispatcher struct {
	api           platform.API
	impersonation bool
}

// NewDispatcher creates a Dispatcher. With impersonation disabled,
// threaded replies degrade to attachment-broadcast in the bot's voice.
func NewDispatcher(api platform.API, impersonation bool) *Dispatcher {
	return &Dispatcher{api: api, impersonation: impersonation}
}

// ReplyToTarget delivers text against a pending relay target. The
// membership check runs immediately before the send; an indeterminate
// or negative result aborts the delivery. Returns the target's
// vchannel detail for confirmation wording.
func (d *Dispatcher) ReplyToTarget(ctx context.Context, t session.Target, text string) (platform.VChannel, error) {
	info, err := d.api.VChannelInfo(ctx, t.VChannelID)
	if err != nil {
		return platform.VChannel{}, fmt.Errorf("membership check: %w", err)
	}
	if info.Type == platform.VChannelP2P {
		return info, ErrP2PReply
	}
	if !info.IsMember {
		return info, &NotMemberError{Label: LocusLabel(info)}
	}

	switch t.Kind {
	case session.KindText:
		if d.impersonation {
			return info, d.api.SendImpersonated(ctx, t.VChannelID, t.MessageKey, t.UID, text)
		}
		return info, d.api.SendAttachment(ctx, t.VChannelID, text, nil)
	case session.KindFile:
		// File forwards carry no threadable key: re-post as a fresh
		// message with the file attached.
		return info, d.Broadcast(ctx, t.VChannelID, text, t.FileURL)
	}
	return info, fmt.Errorf("unknown payload kind %q", t.Kind)
}

// Broadcast emits a message-with-attachment in the bot's voice.
// fileURL may be empty for a text-only broadcast.
func (d *Dispatcher) Broadcast(ctx context.Context, vchannelID, text, fileURL string) error {
	var attachments []bus.Attachment
	if fileURL != "" {
		attachments = []bus.Attachment{{Images: []bus.Image{{URL: fileURL}}}}
	}
	return d.api.SendAttachment(ctx, vchannelID, text, attachments)
}

// Plain emits a simple text message in the bot's voice.
func (d *Dispatcher) Plain(ctx context.Context, vchannelID, text string) error {
	return d.api.SendPlain(ctx, vchannelID, text)
}

// LocusLabel names a vchannel the way delivery confirmations and
// membership complaints word it.
func LocusLabel(v platform.VChannel) string {
	switch v.Type {
	case platform.VChannelNormal:
		return "讨论组 #" + v.Name + " "
	case platform.VChannelSession:
		if v.Name != "" {
			return "临时组 #" + v.Name
		}
		return "临时组"
	case platform.VChannelP2P:
		return "私信聊天"
	}
	return "未知会话"
}
