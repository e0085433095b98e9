package tracker

import (
	"sync"
	"time"
)

// DefaultClaimTTL bounds how long a handler claim suppresses automated replies.
const DefaultClaimTTL = 24 * time.Hour

// Claim marks a lead as being worked from a conversation.
type Claim struct {
	LeadID                string    `json:"leadId"`
	HandlerConversationID string    `json:"handlerConversationId"`
	ClaimedAt             time.Time `json:"claimedAt"`
}

// Claims holds handler claims with an explicit expiry.
type Claims struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	byLead map[string]Claim
}

func NewClaims(ttl time.Duration) *Claims {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &Claims{ttl: ttl, now: time.Now, byLead: make(map[string]Claim)}
}

// TryClaim claims leadID for conversationID unless a live claim exists.
// Check and set happen under one lock; true means the caller now owns it.
func (c *Claims) TryClaim(leadID, conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byLead[leadID]; ok && c.live(existing) {
		return false
	}
	c.byLead[leadID] = Claim{LeadID: leadID, HandlerConversationID: conversationID, ClaimedAt: c.now()}
	return true
}

// Set records or refreshes a claim unconditionally.
func (c *Claims) Set(leadID, conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byLead[leadID] = Claim{LeadID: leadID, HandlerConversationID: conversationID, ClaimedAt: c.now()}
}

// Active returns the live claim for leadID.
func (c *Claims) Active(leadID string) (Claim, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	claim, ok := c.byLead[leadID]
	if !ok || !c.live(claim) {
		return Claim{}, false
	}
	return claim, true
}

// Prune drops expired claims and returns how many were removed.
func (c *Claims) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, claim := range c.byLead {
		if !c.live(claim) {
			delete(c.byLead, id)
			removed++
		}
	}
	return removed
}

func (c *Claims) live(claim Claim) bool {
	return c.now().Sub(claim.ClaimedAt) < c.ttl
}
