// Package relay implements the anonymous-relay core: target
// resolution, delivery dispatch, and the conversation controller.
package relay

import (
	"errors"
	"fmt"
)

// Resolution and delivery outcomes the controller maps to replies.
var (
	// ErrNoDestination means the text carried no trailing destination tag.
	ErrNoDestination = errors.New("no destination recognized")
	// ErrChannelNotFound means the #-tag matched no channel.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrUserNotFound means the @-tag matched no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrP2PCreate means the direct conversation could not be started.
	ErrP2PCreate = errors.New("could not start conversation")
	// ErrP2PReply means a pending reply pointed at a direct
	// conversation, which impersonated replies do not support.
	ErrP2PReply = errors.New("cannot reply into a direct conversation")
)

// NotMemberError reports that the bot is not a member of the target
// locus. Label is the human-readable destination name.
type NotMemberError struct {
	Label string
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("not a member of %s", e.Label)
}
