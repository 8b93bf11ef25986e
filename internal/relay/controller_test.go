package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/config"
	"github.com/zomco/hubot-heyodo/internal/platform"
	"github.com/zomco/hubot-heyodo/internal/replies"
	"github.com/zomco/hubot-heyodo/internal/session"
)

type harness struct {
	api     *fakeAPI
	store   *session.MemoryStore
	ctrl    *Controller
	replies []bus.Reply
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Warn.RedactOnRelay = false
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		api:   newFakeAPI(),
		store: session.NewMemoryStore(0),
	}
	h.ctrl = NewController(cfg, h.api, h.store, replies.Default(), func(r bus.Reply) {
		h.replies = append(h.replies, r)
	})
	return h
}

func (h *harness) handle(ev bus.Event) {
	h.ctrl.HandleEvent(context.Background(), ev)
}

func (h *harness) lastReply(t *testing.T) bus.Reply {
	t.Helper()
	require.NotEmpty(t, h.replies)
	return h.replies[len(h.replies)-1]
}

func (h *harness) sessionState(t *testing.T, id string) session.State {
	t.Helper()
	state, err := h.store.Peek(context.Background(), id)
	require.NoError(t, err)
	return state
}

func privateText(uid, text string) bus.Event {
	return bus.Event{Type: bus.TypeMessage, Subtype: bus.SubtypeNormal, UID: uid, VChannelID: "P-" + uid, Text: text}
}

// Forward a channel message, then speak: one impersonated reply
// threaded to the original, session cleared.
func TestEndToEnd_ForwardThenReply(t *testing.T) {
	h := newHarness(t, nil)
	h.api.vchannels["C1"] = memberChannel("C1", "general")

	h.handle(bus.Event{
		Type: bus.TypeMessage, Subtype: bus.SubtypeForwarded, UID: "u1", VChannelID: "P-u1",
		Repost: &bus.Repost{VChannelID: "C1", UID: "author", MessageKey: "K1", Text: "original"},
	})
	assert.Equal(t, replies.Default().Text(replies.KeyReady), h.lastReply(t).Text)

	h.handle(privateText("u1", "agreed"))

	require.Len(t, h.api.impersonated, 1)
	sent := h.api.impersonated[0]
	assert.Equal(t, "C1", sent.VChannelID)
	assert.Equal(t, "K1", sent.MessageKey)
	assert.Equal(t, "agreed", sent.Text)
	assert.Equal(t, 1, h.api.outboundCount())
	assert.Contains(t, h.lastReply(t).Text, "已传达到")
	assert.True(t, h.sessionState(t, "u1").Empty())
}

// Upload a file, then name a channel destination: one attachment
// broadcast, session cleared.
func TestEndToEnd_FileThenDestination(t *testing.T) {
	h := newHarness(t, nil)
	h.api.channels = []platform.Channel{{VChannelID: "V-random", Name: "random", IsMember: true}}

	h.handle(bus.Event{
		Type: bus.TypeMessage, Subtype: bus.SubtypeFile, UID: "u1", VChannelID: "P-u1",
		File: &bus.File{UID: "u1", Key: "FK", URL: "http://files/pic.png"},
	})
	assert.Equal(t, replies.Default().Text(replies.KeyReady), h.lastReply(t).Text)

	h.handle(privateText("u1", "check this out #random "))

	require.Len(t, h.api.attachments, 1)
	sent := h.api.attachments[0]
	assert.Equal(t, "V-random", sent.VChannelID)
	assert.Equal(t, "check this out", sent.Text)
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "http://files/pic.png", sent.Attachments[0].Images[0].URL)
	assert.Equal(t, 1, h.api.outboundCount())
	assert.True(t, h.sessionState(t, "u1").Empty())
}

// Plain text with no tag and an empty session draws the usage hint.
func TestEndToEnd_NoTagEmptySession(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(privateText("u1", "no tag here"))

	assert.Equal(t, 0, h.api.outboundCount())
	assert.Equal(t, replies.Default().Text(replies.KeyUsageHint), h.lastReply(t).Text)
}

// A channel message well past the ratio threshold draws exactly one
// warning, mentioning the author.
func TestEndToEnd_ChannelWarning(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(bus.Event{
		Type: bus.TypeChannelMessage, Subtype: bus.SubtypeNormal,
		UID: "shouty", VChannelID: "C1", Text: "no!! k!!?!",
	})

	require.Len(t, h.replies, 1)
	warning := h.replies[0]
	assert.Equal(t, "C1", warning.VChannelID)
	assert.Equal(t, "shouty", warning.MentionUID)
	assert.Equal(t, replies.Default().Text(replies.KeyWarnAbuse), warning.Text)
	assert.Equal(t, 1, h.ctrl.Recorder().HitCount("shouty"))
}

func TestChannelWarning_BelowThresholdIsSilent(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(bus.Event{
		Type: bus.TypeChannelMessage, Subtype: bus.SubtypeNormal,
		UID: "calm", VChannelID: "C1", Text: strings.Repeat("a", 99) + "!",
	})

	// 1/100 < 0.02: recorded but no warning.
	assert.Empty(t, h.replies)
	assert.Equal(t, 1, h.ctrl.Recorder().HitCount("calm"))
}

func TestChannelWarning_ForwardedPostsStandalone(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(bus.Event{
		Type: bus.TypeChannelMessage, Subtype: bus.SubtypeForwarded,
		UID: "fwd", VChannelID: "C1",
		Repost: &bus.Repost{VChannelID: "C0", UID: "origin", MessageKey: "K0", Text: "what!!!"},
	})

	require.Len(t, h.replies, 1)
	warning := h.replies[0]
	assert.Equal(t, "C1", warning.VChannelID)
	assert.Empty(t, warning.MentionUID) // bot's own voice, not addressed
	assert.Equal(t, replies.Default().Text(replies.KeyWarnForward), warning.Text)
}

func TestChannelWarning_DisabledByConfig(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Warn.Enabled = false })

	h.handle(bus.Event{
		Type: bus.TypeChannelMessage, Subtype: bus.SubtypeNormal,
		UID: "shouty", VChannelID: "C1", Text: "!!!!",
	})
	assert.Empty(t, h.replies)
}

func TestChannelWarning_AnyMode(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Warn.Mode = "any" })

	h.handle(bus.Event{
		Type: bus.TypeChannelMessage, Subtype: bus.SubtypeNormal,
		UID: "u", VChannelID: "C1", Text: strings.Repeat("a", 99) + "!",
	})
	require.Len(t, h.replies, 1)
}

func TestPrivate_HelpCommand(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(privateText("u1", "help"))

	require.Len(t, h.replies, 1)
	help := h.replies[0]
	assert.Equal(t, replies.Default().Text(replies.KeyHelpIntro), help.Text)
	assert.Len(t, help.Attachments, 4)
	assert.Equal(t, 0, h.api.outboundCount())
}

func TestPrivate_ClearCommand(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.store.SetAttachment(ctx, "u1", "http://files/x.png"))

	h.handle(privateText("u1", " CLEAR "))

	assert.Equal(t, replies.Default().Text(replies.KeyCleared), h.lastReply(t).Text)
	assert.True(t, h.sessionState(t, "u1").Empty())
}

func TestPrivate_UnknownSubtype(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(bus.Event{Type: bus.TypeMessage, Subtype: "sticker", UID: "u1", VChannelID: "P-u1"})

	assert.Contains(t, h.lastReply(t).Text, "无法理解")
	assert.Equal(t, 0, h.api.outboundCount())
}

func TestPrivate_DirectSendToUser(t *testing.T) {
	h := newHarness(t, nil)
	h.api.users = []platform.User{{ID: "u42", Name: "alice"}}
	h.api.p2pID = "P1"

	h.handle(privateText("u1", "hi there @<=u42=> "))

	require.Len(t, h.api.plains, 1)
	assert.Equal(t, plainSend{"P1", "hi there"}, h.api.plains[0])
	assert.Contains(t, h.lastReply(t).Text, "@alice")
}

func TestPrivate_ReplyNotMemberAbortsAndClears(t *testing.T) {
	h := newHarness(t, nil)
	h.api.vchannels["C1"] = platform.VChannel{
		VChannelID: "C1", Name: "general", Type: platform.VChannelNormal, IsMember: false,
	}
	ctx := context.Background()
	require.NoError(t, h.store.SetTarget(ctx, "u1", session.Target{
		VChannelID: "C1", UID: "author", MessageKey: "K1", Kind: session.KindText,
	}))

	h.handle(privateText("u1", "agreed"))

	assert.Equal(t, 0, h.api.outboundCount())
	assert.Contains(t, h.lastReply(t).Text, "还不是")
	// Cleared even though delivery failed.
	assert.True(t, h.sessionState(t, "u1").Empty())
}

func TestPrivate_ReplyMembershipErrorSurfaced(t *testing.T) {
	h := newHarness(t, nil)
	h.api.vchannelErr = errors.New("gateway timeout")
	ctx := context.Background()
	require.NoError(t, h.store.SetTarget(ctx, "u1", session.Target{
		VChannelID: "C1", Kind: session.KindText, MessageKey: "K1",
	}))

	h.handle(privateText("u1", "agreed"))

	assert.Equal(t, 0, h.api.outboundCount())
	assert.Contains(t, h.lastReply(t).Text, "gateway timeout")
	assert.True(t, h.sessionState(t, "u1").Empty())
}

func TestPrivate_PendingAttachmentNoTag(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.store.SetAttachment(ctx, "u1", "http://files/x.png"))

	h.handle(privateText("u1", "where should this go"))

	assert.Equal(t, 0, h.api.outboundCount())
	assert.Equal(t, replies.Default().Text(replies.KeyUsageHint), h.lastReply(t).Text)
	// Consuming the pending state clears it either way.
	assert.True(t, h.sessionState(t, "u1").Empty())
}

func TestPrivate_NewForwardSupersedesOld(t *testing.T) {
	h := newHarness(t, nil)
	h.api.vchannels["C2"] = memberChannel("C2", "second")

	for _, key := range []string{"K1", "K2"} {
		vch := "C1"
		if key == "K2" {
			vch = "C2"
		}
		h.handle(bus.Event{
			Type: bus.TypeMessage, Subtype: bus.SubtypeForwarded, UID: "u1", VChannelID: "P-u1",
			Repost: &bus.Repost{VChannelID: vch, UID: "author", MessageKey: key, Text: "x"},
		})
	}

	h.handle(privateText("u1", "reply to the latest"))

	require.Len(t, h.api.impersonated, 1)
	assert.Equal(t, "K2", h.api.impersonated[0].MessageKey)
	assert.Equal(t, "C2", h.api.impersonated[0].VChannelID)
}

// brokenStore serves a hand-built state, bypassing the setters'
// mutual-overwrite guarantee.
type brokenStore struct {
	session.Store
	state session.State
}

func (b *brokenStore) Peek(_ context.Context, _ string) (session.State, error) {
	return b.state, nil
}

func (b *brokenStore) Clear(_ context.Context, _ string) error {
	b.state = session.State{}
	return nil
}

func TestPrivate_InconsistentSessionIsNonFatal(t *testing.T) {
	api := newFakeAPI()
	store := &brokenStore{state: session.State{
		Target:     &session.Target{VChannelID: "C1", Kind: session.KindText},
		Attachment: "http://files/x.png",
	}}
	var got []bus.Reply
	ctrl := NewController(config.DefaultConfig(), api, store, replies.Default(), func(r bus.Reply) {
		got = append(got, r)
	})

	ctrl.HandleEvent(context.Background(), privateText("u1", "hello"))

	assert.Equal(t, 0, api.outboundCount())
	require.NotEmpty(t, got)
	assert.Equal(t, replies.Default().Text(replies.KeyCacheError), got[len(got)-1].Text)
	assert.True(t, store.state.Empty())

	// The controller keeps working afterward.
	ctrl.HandleEvent(context.Background(), privateText("u1", "still alive"))
	assert.Equal(t, replies.Default().Text(replies.KeyUsageHint), got[len(got)-1].Text)
}

func TestPrivate_RedactionOnRelay(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Warn.RedactOnRelay = true })
	h.api.vchannels["C1"] = memberChannel("C1", "general")
	ctx := context.Background()
	require.NoError(t, h.store.SetTarget(ctx, "u1", session.Target{
		VChannelID: "C1", UID: "author", MessageKey: "K1", Kind: session.KindText,
	}))

	h.handle(privateText("u1", "calm down!!"))

	require.Len(t, h.api.impersonated, 1)
	assert.Equal(t, "calm down  ", h.api.impersonated[0].Text)
}

func TestPrivate_RedactionSkipsUserTargets(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Warn.RedactOnRelay = true })
	h.api.users = []platform.User{{ID: "u42", Name: "alice"}}
	h.api.p2pID = "P1"

	h.handle(privateText("u1", "yes!! @<=u42=> "))

	require.Len(t, h.api.plains, 1)
	assert.Equal(t, "yes!!", h.api.plains[0].Text)
}

func TestPrivate_ChannelNotFoundReply(t *testing.T) {
	h := newHarness(t, nil)

	h.handle(privateText("u1", "hello #missing "))

	assert.Equal(t, 0, h.api.outboundCount())
	assert.Equal(t, replies.Default().Text(replies.KeyChanNotFound), h.lastReply(t).Text)
}
