// Package bus provides the async event plumbing between the platform
// connection and the relay controller.
package bus

import "time"

// Event types and subtypes as delivered by the platform RTM stream.
const (
	TypeChannelMessage = "channel_message"
	TypeMessage        = "message" // private conversation with the bot

	SubtypeNormal    = "normal"
	SubtypeForwarded = "forwarded"
	SubtypeFile      = "file"
	SubtypeShareFile = "share_file"
)

// Repost describes a channel message forwarded into another conversation.
type Repost struct {
	VChannelID string `json:"vchannel_id"`
	UID        string `json:"uid"`
	MessageKey string `json:"message_key"`
	Text       string `json:"text"`
}

// File describes an uploaded or shared file.
type File struct {
	ChannelID string `json:"channel_id"`
	UID       string `json:"uid"`
	Key       string `json:"key"`
	URL       string `json:"url"`
}

// Event is a single inbound platform event.
type Event struct {
	Type       string    `json:"type"`
	Subtype    string    `json:"subtype"`
	UID        string    `json:"uid"`
	VChannelID string    `json:"vchannel_id"`
	Text       string    `json:"text"`
	Repost     *Repost   `json:"repost,omitempty"`
	File       *File     `json:"file,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// SessionKey returns the conversation identity this event belongs to.
// Pending relay state is keyed on the sender, not the vchannel, so a
// user talking to the bot from two clients still shares one session.
func (e *Event) SessionKey() string {
	return e.UID
}

// IsPrivate reports whether the event came from a private conversation
// with the bot rather than a channel broadcast.
func (e *Event) IsPrivate() bool {
	return e.Type == TypeMessage
}

// Image is a single image attachment entry.
type Image struct {
	URL string `json:"url"`
}

// Attachment is one outbound attachment block (text and/or images).
type Attachment struct {
	Text   string  `json:"text,omitempty"`
	Images []Image `json:"images,omitempty"`
}

// Reply is an outbound status message for the requester (or a warning
// into a channel). MentionUID, when set, prefixes the text with a
// mention of that user.
type Reply struct {
	VChannelID  string       `json:"vchannel_id"`
	Text        string       `json:"text"`
	MentionUID  string       `json:"mention_uid,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
