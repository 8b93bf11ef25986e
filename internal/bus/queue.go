package bus

import (
	"context"
	"sync"
)

// MessageBus decouples the RTM reader from the controller and the
// controller from the reply sender.
type MessageBus struct {
	Inbound chan Event
	Replies chan Reply

	mu          sync.RWMutex
	subscribers []func(Reply)
}

// NewMessageBus creates a message bus with buffered channels.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		Inbound: make(chan Event, 100),
		Replies: make(chan Reply, 100),
	}
}

// PublishEvent hands an inbound platform event to the controller.
func (b *MessageBus) PublishEvent(ev Event) {
	b.Inbound <- ev
}

// PublishReply queues an outbound reply for delivery.
func (b *MessageBus) PublishReply(r Reply) {
	b.Replies <- r
}

// SubscribeReplies registers a callback invoked for every queued reply.
func (b *MessageBus) SubscribeReplies(callback func(Reply)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, callback)
}

// DispatchReplies runs the reply dispatch loop. Blocks until ctx is cancelled.
func (b *MessageBus) DispatchReplies(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-b.Replies:
			b.mu.RLock()
			subs := b.subscribers
			b.mu.RUnlock()
			for _, cb := range subs {
				cb(r)
			}
		}
	}
}

// InboundSize returns the number of pending inbound events.
func (b *MessageBus) InboundSize() int {
	return len(b.Inbound)
}

// RepliesSize returns the number of pending replies.
func (b *MessageBus) RepliesSize() int {
	return len(b.Replies)
}
