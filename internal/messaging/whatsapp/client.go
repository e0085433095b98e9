// Package whatsapp is the chat transport backed by a linked WhatsApp device.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wolfman30/leadtriage/internal/messaging"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// ErrLoggedOut means the linked device session was revoked. It is the only
// transport condition the process treats as fatal.
var ErrLoggedOut = errors.New("whatsapp: session logged out")

// Config selects the device store and which chats are triaged.
type Config struct {
	StoreDSN string
	// MonitoredGroups is the allow-list of group display names. Empty allows every group.
	MonitoredGroups []string
	// IncludeDirect also triages one-to-one chats.
	IncludeDirect bool
}

// Sink receives every accepted inbound message.
type Sink func(messaging.Inbound)

type groupNamer func(ctx context.Context, jid types.JID) (string, error)

// Client wraps a whatsmeow client as a messaging.Transport.
type Client struct {
	wa        *whatsmeow.Client
	container *sqlstore.Container
	sink      Sink
	logger    *logging.Logger
	filter    *chatFilter
	fatal     chan error
	fatalOnce sync.Once
}

// New opens the sqlite device store and prepares the client. Call Connect to go online.
func New(ctx context.Context, cfg Config, sink Sink, logger *logging.Logger) (*Client, error) {
	if sink == nil {
		panic("whatsapp: sink required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("whatsapp")
	dsn := cfg.StoreDSN
	if dsn == "" {
		dsn = "file:leadtriage-whatsapp.db?_foreign_keys=on"
	}

	container, err := sqlstore.New(ctx, "sqlite3", dsn, waLogger{logger.Component("whatsapp.store")})
	if err != nil {
		return nil, fmt.Errorf("whatsapp: open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: load device: %w", err)
	}

	c := &Client{
		container: container,
		sink:      sink,
		logger:    logger,
		fatal:     make(chan error, 1),
	}
	c.wa = whatsmeow.NewClient(device, waLogger{logger.Component("whatsapp.client")})
	c.filter = newChatFilter(cfg.MonitoredGroups, cfg.IncludeDirect, c.groupName)
	c.wa.AddEventHandler(c.handleEvent)
	return c, nil
}

// Connect goes online. A device that was never linked prints a QR code to qrOut
// and blocks until it is scanned or ctx ends.
func (c *Client) Connect(ctx context.Context, qrOut io.Writer) error {
	if c.wa.Store.ID != nil {
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("whatsapp: connect: %w", err)
		}
		c.logger.Info("connected", "device", c.wa.Store.ID.String())
		return nil
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp: qr channel: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("whatsapp: connect: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, qrOut)
			c.logger.Info("scan the QR code to link this device")
		case "success":
			c.logger.Info("device linked")
			return nil
		case "timeout":
			return fmt.Errorf("whatsapp: qr pairing timed out")
		default:
			if evt.Error != nil {
				return fmt.Errorf("whatsapp: pairing: %w", evt.Error)
			}
		}
	}
	return ctx.Err()
}

// SendText delivers text to a chat address ("1203...@g.us") or a bare phone number.
func (c *Client) SendText(ctx context.Context, conversationID, text string) error {
	jid, err := ParseConversation(conversationID)
	if err != nil {
		return err
	}
	if !c.wa.IsConnected() {
		return fmt.Errorf("whatsapp: not connected")
	}
	if _, err := c.wa.SendMessage(ctx, jid, &waProto.Message{Conversation: &text}); err != nil {
		return fmt.Errorf("whatsapp: send to %s: %w", jid.String(), err)
	}
	return nil
}

// Fatal delivers ErrLoggedOut once the session is revoked.
func (c *Client) Fatal() <-chan error {
	return c.fatal
}

func (c *Client) Close() error {
	c.wa.Disconnect()
	return c.container.Close()
}

func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg, ok := c.filter.accept(ctx, toInbound(v))
		if !ok {
			return
		}
		c.sink(msg)
	case *events.LoggedOut:
		c.logger.Error("session logged out", "reason", v.Reason.String())
		c.fatalOnce.Do(func() { c.fatal <- ErrLoggedOut })
	case *events.Disconnected:
		c.logger.Warn("disconnected, whatsmeow will reconnect")
	}
}

func (c *Client) groupName(ctx context.Context, jid types.JID) (string, error) {
	info, err := c.wa.GetGroupInfo(jid)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// toInbound converts a whatsmeow message event. Messages sent by this device
// and messages without text come back with an empty Text.
func toInbound(v *events.Message) inboundEvent {
	text := v.Message.GetConversation()
	if text == "" && v.Message.GetExtendedTextMessage() != nil {
		text = v.Message.GetExtendedTextMessage().GetText()
	}
	evt := inboundEvent{chat: v.Info.Chat, fromMe: v.Info.IsFromMe}
	evt.Inbound = messaging.Inbound{
		ID:             string(v.Info.ID),
		ConversationID: v.Info.Chat.String(),
		SenderID:       v.Info.Sender.User,
		SenderName:     v.Info.PushName,
		IsGroup:        v.Info.IsGroup,
		Text:           strings.TrimSpace(text),
		ReceivedAt:     v.Info.Timestamp,
	}
	return evt
}

type inboundEvent struct {
	messaging.Inbound
	chat   types.JID
	fromMe bool
}

// ParseConversation accepts a full JID or a bare phone number.
func ParseConversation(conversationID string) (types.JID, error) {
	id := messaging.NormalizeUser(conversationID)
	if id == "" {
		return types.JID{}, fmt.Errorf("whatsapp: empty conversation id")
	}
	if !strings.Contains(id, "@") {
		return types.NewJID(id, types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(id)
	if err != nil {
		return types.JID{}, fmt.Errorf("whatsapp: parse %q: %w", conversationID, err)
	}
	return jid, nil
}
