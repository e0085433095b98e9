package whatsapp

import (
	"context"
	"strings"
	"sync"

	"go.mau.fi/whatsmeow/types"

	"github.com/wolfman30/leadtriage/internal/messaging"
)

// chatFilter applies the group allow-list, caching group names per chat.
type chatFilter struct {
	allow         map[string]bool
	includeDirect bool
	lookup        groupNamer

	mu    sync.Mutex
	names map[types.JID]string
}

func newChatFilter(groups []string, includeDirect bool, lookup groupNamer) *chatFilter {
	allow := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g = normalizeGroup(g); g != "" {
			allow[g] = true
		}
	}
	return &chatFilter{allow: allow, includeDirect: includeDirect, lookup: lookup, names: make(map[types.JID]string)}
}

func (f *chatFilter) accept(ctx context.Context, evt inboundEvent) (messaging.Inbound, bool) {
	msg := evt.Inbound
	if evt.fromMe || msg.Text == "" || evt.chat.Server == types.BroadcastServer {
		return msg, false
	}
	if !msg.IsGroup {
		return msg, f.includeDirect
	}

	name, ok := f.name(ctx, evt.chat)
	if !ok {
		return msg, false
	}
	msg.GroupName = name
	if len(f.allow) == 0 {
		return msg, true
	}
	return msg, f.allow[normalizeGroup(name)]
}

func (f *chatFilter) name(ctx context.Context, chat types.JID) (string, bool) {
	f.mu.Lock()
	name, cached := f.names[chat]
	f.mu.Unlock()
	if cached {
		return name, true
	}
	if f.lookup == nil {
		return "", len(f.allow) == 0
	}
	name, err := f.lookup(ctx, chat)
	if err != nil {
		return "", false
	}
	f.mu.Lock()
	f.names[chat] = name
	f.mu.Unlock()
	return name, true
}

func normalizeGroup(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
