package relay

import (
	"context"
	"sync"

	"github.com/zomco/hubot-heyodo/internal/bus"
	"github.com/zomco/hubot-heyodo/internal/platform"
)

// fakeAPI records outbound calls and serves canned platform data.
type fakeAPI struct {
	mu sync.Mutex

	vchannels   map[string]platform.VChannel
	vchannelErr error
	channels    []platform.Channel
	channelsErr error
	users       []platform.User
	usersErr    error
	p2pID       string
	p2pErr      error
	sendErr     error

	p2pCalls     []string
	impersonated []impersonatedSend
	attachments  []attachmentSend
	plains       []plainSend
}

type impersonatedSend struct {
	VChannelID, MessageKey, UID, Text string
}

type attachmentSend struct {
	VChannelID, Text string
	Attachments      []bus.Attachment
}

type plainSend struct {
	VChannelID, Text string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{vchannels: make(map[string]platform.VChannel)}
}

func (f *fakeAPI) VChannelInfo(_ context.Context, vchannelID string) (platform.VChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vchannelErr != nil {
		return platform.VChannel{}, f.vchannelErr
	}
	return f.vchannels[vchannelID], nil
}

func (f *fakeAPI) ListChannels(_ context.Context) ([]platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels, f.channelsErr
}

func (f *fakeAPI) ListUsers(_ context.Context) ([]platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, f.usersErr
}

func (f *fakeAPI) CreateP2P(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.p2pCalls = append(f.p2pCalls, userID)
	return f.p2pID, f.p2pErr
}

func (f *fakeAPI) SendImpersonated(_ context.Context, vchannelID, messageKey, uid, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.impersonated = append(f.impersonated, impersonatedSend{vchannelID, messageKey, uid, text})
	return nil
}

func (f *fakeAPI) SendAttachment(_ context.Context, vchannelID, text string, attachments []bus.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.attachments = append(f.attachments, attachmentSend{vchannelID, text, attachments})
	return nil
}

func (f *fakeAPI) SendPlain(_ context.Context, vchannelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.plains = append(f.plains, plainSend{vchannelID, text})
	return nil
}

// outboundCount returns the total number of delivered messages.
func (f *fakeAPI) outboundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.impersonated) + len(f.attachments) + len(f.plains)
}
