// Package messaging holds the chat transport contract, outbound retry,
// reply templates and inbound batching.
package messaging

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSendFailed is returned once every send attempt for a message failed.
	ErrSendFailed = errors.New("messaging: send failed")
	// ErrBatcherClosed is returned by Add after Close.
	ErrBatcherClosed = errors.New("messaging: batcher closed")
)

// Transport delivers text to a conversation.
type Transport interface {
	SendText(ctx context.Context, conversationID, text string) error
}

// Inbound is one chat message as received from the transport.
type Inbound struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderName     string    `json:"senderName"`
	IsGroup        bool      `json:"isGroup"`
	GroupName      string    `json:"groupName,omitempty"`
	Text           string    `json:"text"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// SourceDescription labels where a message came from for lead records.
func (m Inbound) SourceDescription() string {
	if m.IsGroup && m.GroupName != "" {
		return "group: " + m.GroupName
	}
	if m.IsGroup {
		return "group"
	}
	return "direct"
}

// SenderLabel prefers the display name over the raw sender id.
func (m Inbound) SenderLabel() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderID
}
