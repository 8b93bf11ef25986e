package relay

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/config"
	"github.com/zomco/hubot-heyodo/internal/glyph"
	"github.com/zomco/hubot-heyodo/internal/platform"
	"github.com/zomco/hubot-heyodo/internal/replies"
	"github.com/zomco/hubot-heyodo/internal/session"
)

// Controller classifies inbound events and drives the relay state
// machine. One invocation per event; events for the same conversation
// identity must be serialized by the caller (see the lane package).
type Controller struct {
	botName    string
	warn       config.WarnConfig
	policy     glyph.Policy
	recorder   *glyph.Recorder
	store      session.Store
	resolver   *Resolver
	dispatcher *Dispatcher
	catalog    *replies.Catalog
	out        func(bus.Reply)
}

// NewController wires the relay core together. out receives every
// status reply and channel warning for delivery.
func NewController(cfg config.Config, api platform.API, store session.Store, catalog *replies.Catalog, out func(bus.Reply)) *Controller {
	return &Controller{
		botName: cfg.Bot.Name,
		warn:    cfg.Warn,
		policy: glyph.Policy{
			Mode:      glyph.Mode(cfg.Warn.Mode),
			Threshold: cfg.Warn.Threshold,
		},
		recorder:   glyph.NewRecorder(),
		store:      store,
		resolver:   NewResolver(api, cfg.Relay.EnableUserRelay),
		dispatcher: NewDispatcher(api, cfg.Relay.Impersonation),
		catalog:    catalog,
		out:        out,
	}
}

// Recorder exposes the per-author glyph hit counters.
func (c *Controller) Recorder() *glyph.Recorder {
	return c.recorder
}

// HandleEvent processes one inbound platform event.
func (c *Controller) HandleEvent(ctx context.Context, ev bus.Event) {
	switch ev.Type {
	case bus.TypeChannelMessage:
		c.handleChannel(ev)
	case bus.TypeMessage:
		c.handlePrivate(ctx, ev)
	}
}

// --- channel-broadcast surface ---

func (c *Controller) handleChannel(ev bus.Event) {
	if !c.warn.Enabled {
		return
	}

	switch ev.Subtype {
	case bus.SubtypeNormal:
		count := glyph.Count(ev.Text)
		if count == 0 {
			return
		}
		c.recorder.Record(ev.UID, count, glyph.Length(ev.Text))
		if c.policy.ShouldWarn(count, glyph.Length(ev.Text)) {
			c.reply(ev, replies.KeyWarnAbuse, nil)
		}

	case bus.SubtypeForwarded:
		if ev.Repost == nil {
			return
		}
		count := glyph.Count(ev.Repost.Text)
		if count == 0 {
			return
		}
		c.recorder.Record(ev.UID, count, glyph.Length(ev.Repost.Text))
		if c.policy.ShouldWarn(count, glyph.Length(ev.Repost.Text)) {
			// The forwarded original can't be threaded to; post the
			// warning standalone in the bot's own voice.
			c.send(ev, replies.KeyWarnForward, nil)
		}
	}
}

// --- private-conversation surface ---

func (c *Controller) handlePrivate(ctx context.Context, ev bus.Event) {
	id := ev.SessionKey()

	if ev.Subtype == bus.SubtypeNormal {
		switch strings.ToLower(strings.TrimSpace(ev.Text)) {
		case "help":
			c.sendHelp(ev)
			return
		case "clear":
			if err := c.store.Clear(ctx, id); err != nil {
				c.apiError(ev, err)
				return
			}
			c.reply(ev, replies.KeyCleared, nil)
			return
		}
	}

	switch ev.Subtype {
	case bus.SubtypeForwarded, bus.SubtypeShareFile:
		target, ok := ForwardTarget(&ev)
		if !ok {
			c.send(ev, replies.KeyNotUnderstood, map[string]string{"bot": c.botName})
			return
		}
		if err := c.store.SetTarget(ctx, id, target); err != nil {
			c.apiError(ev, err)
			return
		}
		c.reply(ev, replies.KeyReady, nil)

	case bus.SubtypeFile:
		if ev.File == nil {
			c.send(ev, replies.KeyNotUnderstood, map[string]string{"bot": c.botName})
			return
		}
		if err := c.store.SetAttachment(ctx, id, ev.File.URL); err != nil {
			c.apiError(ev, err)
			return
		}
		c.reply(ev, replies.KeyReady, nil)

	case bus.SubtypeNormal:
		c.handlePrivateText(ctx, ev)

	default:
		c.send(ev, replies.KeyNotUnderstood, map[string]string{"bot": c.botName})
	}
}

func (c *Controller) handlePrivateText(ctx context.Context, ev bus.Event) {
	id := ev.SessionKey()

	state, err := c.store.Peek(ctx, id)
	if err != nil {
		c.apiError(ev, err)
		return
	}

	switch {
	case state.Inconsistent():
		// Unreachable through the setters; reset rather than die.
		log.Printf("[Controller] session %s has both slots set, resetting", id)
		if err := c.store.Clear(ctx, id); err != nil {
			log.Printf("[Controller] reset of session %s failed: %v", id, err)
		}
		c.send(ev, replies.KeyCacheError, nil)

	case state.Target != nil:
		c.deliverPendingReply(ctx, ev, *state.Target)
		c.clear(ctx, id)

	case state.Attachment != "":
		c.deliverAttachment(ctx, ev, state.Attachment)
		c.clear(ctx, id)

	default:
		c.deliverDirect(ctx, ev)
	}
}

// deliverPendingReply consumes a pending relay target: the private
// text becomes the anonymous reply.
func (c *Controller) deliverPendingReply(ctx context.Context, ev bus.Event, target session.Target) {
	text := c.outgoing(ev.Text, true)

	info, err := c.dispatcher.ReplyToTarget(ctx, target, text)
	var notMember *NotMemberError
	switch {
	case err == nil:
		c.reply(ev, replies.KeyDelivered, map[string]string{"target": LocusLabel(info)})
	case errors.As(err, &notMember):
		c.send(ev, replies.KeyNotMember, map[string]string{"bot": c.botName, "target": notMember.Label})
	case errors.Is(err, ErrP2PReply):
		c.send(ev, replies.KeyInternalError, map[string]string{"detail": "匿名回复错误"})
	default:
		c.apiError(ev, err)
	}
}

// deliverAttachment consumes a pending attachment: the private text
// names the destination via its trailing tag.
func (c *Controller) deliverAttachment(ctx context.Context, ev bus.Event, fileURL string) {
	resolved, err := c.resolver.ResolveText(ctx, ev.Text)
	if err != nil {
		c.resolutionFailure(ev, err)
		return
	}

	text := c.outgoing(resolved.Body, resolved.Kind == TagChannel)
	if err := c.dispatcher.Broadcast(ctx, resolved.VChannelID, text, fileURL); err != nil {
		c.apiError(ev, err)
		return
	}
	c.reply(ev, replies.KeyDelivered, map[string]string{"target": resolved.Label})
}

// deliverDirect handles plain anonymous sends with an empty session.
func (c *Controller) deliverDirect(ctx context.Context, ev bus.Event) {
	resolved, err := c.resolver.ResolveText(ctx, ev.Text)
	if err != nil {
		c.resolutionFailure(ev, err)
		return
	}

	text := c.outgoing(resolved.Body, resolved.Kind == TagChannel)
	if err := c.dispatcher.Plain(ctx, resolved.VChannelID, text); err != nil {
		c.apiError(ev, err)
		return
	}
	c.reply(ev, replies.KeyDelivered, map[string]string{"target": resolved.Label})
}

func (c *Controller) resolutionFailure(ev bus.Event, err error) {
	var notMember *NotMemberError
	switch {
	case errors.Is(err, ErrNoDestination):
		c.send(ev, replies.KeyUsageHint, nil)
	case errors.Is(err, ErrChannelNotFound):
		c.reply(ev, replies.KeyChanNotFound, nil)
	case errors.Is(err, ErrUserNotFound):
		c.reply(ev, replies.KeyUserNotFound, nil)
	case errors.Is(err, ErrP2PCreate):
		c.reply(ev, replies.KeyP2PFailed, nil)
	case errors.As(err, &notMember):
		c.reply(ev, replies.KeyNotMember, map[string]string{"bot": c.botName, "target": notMember.Label})
	default:
		c.apiError(ev, err)
	}
}

// outgoing applies redaction to relayed text bound for a channel.
func (c *Controller) outgoing(text string, channelBound bool) string {
	if c.warn.RedactOnRelay && channelBound {
		return glyph.Redact(text)
	}
	return text
}

func (c *Controller) clear(ctx context.Context, id string) {
	if err := c.store.Clear(ctx, id); err != nil {
		log.Printf("[Controller] clear session %s failed: %v", id, err)
	}
}

// --- reply helpers ---

// reply addresses the requester directly (mention in channels).
func (c *Controller) reply(ev bus.Event, key string, data map[string]string) {
	c.out(bus.Reply{
		VChannelID: ev.VChannelID,
		MentionUID: ev.UID,
		Text:       c.catalog.Render(key, data),
	})
}

// send posts into the conversation without addressing anyone.
func (c *Controller) send(ev bus.Event, key string, data map[string]string) {
	c.out(bus.Reply{
		VChannelID: ev.VChannelID,
		Text:       c.catalog.Render(key, data),
	})
}

func (c *Controller) apiError(ev bus.Event, err error) {
	log.Printf("[Controller] downstream failure: %v", err)
	c.send(ev, replies.KeyAPIError, map[string]string{"error": err.Error()})
}

func (c *Controller) sendHelp(ev bus.Event) {
	data := map[string]string{"bot": c.botName}
	c.out(bus.Reply{
		VChannelID: ev.VChannelID,
		Text:       c.catalog.Render(replies.KeyHelpIntro, data),
		Attachments: []bus.Attachment{
			{Text: c.catalog.Render(replies.KeyHelpReply, data)},
			{Images: []bus.Image{{URL: replies.HelpImageURLs[0]}}},
			{Text: c.catalog.Render(replies.KeyHelpSend, data)},
			{Images: []bus.Image{{URL: replies.HelpImageURLs[1]}}},
		},
	})
}
