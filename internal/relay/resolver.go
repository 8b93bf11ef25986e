package relay

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/platform"
	"github.com/zomco/hubot-heyodo/internal/session"
)

// Trailing destination tags: a #channel or @user token delimited by
// whitespace and anchored at the end of the text.
var (
	channelTagPattern = regexp.MustCompile(`\s#[^#\s]+\s$`)
	userTagPattern    = regexp.MustCompile(`\s@[^@\s]+\s$`)
)

// TagKind distinguishes channel and user destination tags.
type TagKind string

const (
	TagChannel TagKind = "channel"
	TagUser    TagKind = "user"
)

// Tag is a parsed trailing destination tag.
type Tag struct {
	Kind TagKind
	Name string // tag token without the # or @ marker
	Body string // text before the tag match
}

// ParseTrailingTag extracts a trailing #channel or @user tag.
func ParseTrailingTag(text string) (Tag, bool) {
	if loc := channelTagPattern.FindStringIndex(text); loc != nil {
		token := strings.TrimSpace(text[loc[0]:loc[1]])
		return Tag{Kind: TagChannel, Name: token[1:], Body: text[:loc[0]]}, true
	}
	if loc := userTagPattern.FindStringIndex(text); loc != nil {
		token := strings.TrimSpace(text[loc[0]:loc[1]])
		return Tag{Kind: TagUser, Name: token[1:], Body: text[:loc[0]]}, true
	}
	return Tag{}, false
}

// ForwardTarget builds a pending relay target from a forwarded message
// or shared file, without any text parsing.
func ForwardTarget(ev *bus.Event) (session.Target, bool) {
	switch ev.Subtype {
	case bus.SubtypeForwarded:
		if ev.Repost == nil {
			return session.Target{}, false
		}
		return session.Target{
			VChannelID: ev.Repost.VChannelID,
			UID:        ev.Repost.UID,
			MessageKey: ev.Repost.MessageKey,
			Kind:       session.KindText,
		}, true
	case bus.SubtypeShareFile:
		if ev.File == nil {
			return session.Target{}, false
		}
		// A file forward's key cannot thread a reply, so the target is
		// tagged for re-posting instead.
		return session.Target{
			VChannelID: ev.File.ChannelID,
			UID:        ev.File.UID,
			MessageKey: ev.File.Key,
			Kind:       session.KindFile,
			FileURL:    ev.File.URL,
		}, true
	}
	return session.Target{}, false
}

// Resolved is a concrete delivery destination plus the residual body.
type Resolved struct {
	Kind       TagKind
	VChannelID string
	Label      string // "#general" or "@alice", for confirmations
	Body       string
}

// Resolver turns trailing-tag text into concrete destinations using
// the organization's channel and user lists.
type Resolver struct {
	api             platform.API
	enableUserRelay bool
}

// NewResolver creates a Resolver.
func NewResolver(api platform.API, enableUserRelay bool) *Resolver {
	return &Resolver{api: api, enableUserRelay: enableUserRelay}
}

// ResolveText resolves the trailing tag of text to a delivery
// destination. Channel names match exactly and case-sensitively; user
// tags carry the platform's wrapped-id syntax (<=uid=>) and resolve by
// exact id, lazily creating the direct conversation.
func (r *Resolver) ResolveText(ctx context.Context, text string) (Resolved, error) {
	tag, ok := ParseTrailingTag(text)
	if !ok {
		return Resolved{}, ErrNoDestination
	}

	switch tag.Kind {
	case TagChannel:
		channels, err := r.api.ListChannels(ctx)
		if err != nil {
			return Resolved{}, fmt.Errorf("list channels: %w", err)
		}
		for _, ch := range channels {
			if ch.Name != tag.Name {
				continue
			}
			if !ch.IsMember {
				return Resolved{}, &NotMemberError{Label: "讨论组 #" + ch.Name + " "}
			}
			return Resolved{
				Kind:       TagChannel,
				VChannelID: ch.VChannelID,
				Label:      "#" + ch.Name,
				Body:       tag.Body,
			}, nil
		}
		return Resolved{}, ErrChannelNotFound

	case TagUser:
		if !r.enableUserRelay {
			return Resolved{}, ErrNoDestination
		}
		users, err := r.api.ListUsers(ctx)
		if err != nil {
			return Resolved{}, fmt.Errorf("list users: %w", err)
		}
		for _, u := range users {
			if "<="+u.ID+"=>" != tag.Name {
				continue
			}
			vchannelID, err := r.api.CreateP2P(ctx, u.ID)
			if err != nil {
				return Resolved{}, fmt.Errorf("%w: %v", ErrP2PCreate, err)
			}
			return Resolved{
				Kind:       TagUser,
				VChannelID: vchannelID,
				Label:      "@" + u.Name,
				Body:       tag.Body,
			}, nil
		}
		return Resolved{}, ErrUserNotFound
	}

	return Resolved{}, ErrNoDestination
}
