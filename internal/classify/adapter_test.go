package classify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int
	block     bool
	lastReq   Request
}

func (f *fakeLLM) Complete(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.lastReq = req
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return Response{}, ctx.Err()
	}
	if idx < len(f.errs) && f.errs[idx] != nil {
		return Response{}, f.errs[idx]
	}
	if idx < len(f.responses) {
		return Response{Text: f.responses[idx]}, nil
	}
	if len(f.responses) > 0 {
		return Response{Text: f.responses[len(f.responses)-1]}, nil
	}
	return Response{}, errors.New("no response configured")
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const validReply = `{"isLead":true,"confidence":0.9,"priority":"Medium","fields":{"name":"","phone":"","email":"ramesh@example.com","governmentId":"","amount":0,"purpose":"home loan","locationArea":"","locationCity":"Pune","urgency":false,"crmId":"","oppId":"","dealId":""},"reasoning":"prospect asking for a home loan"}`

func testAdapter(llm LLMClient, cfg AdapterConfig) *Adapter {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return NewAdapter(llm, NewMemoryCache(time.Minute), cfg, logging.Discard())
}

func TestAdapterClassifyValidReply(t *testing.T) {
	llm := &fakeLLM{responses: []string{validReply}}
	a := testAdapter(llm, AdapterConfig{Provider: "fake", Model: "m1"})

	res, err := a.Classify(context.Background(), "Ramesh needs home loan in Pune")
	require.NoError(t, err)
	assert.True(t, res.IsLead)
	assert.Equal(t, PriorityMedium, res.Priority)
	assert.Equal(t, "ramesh@example.com", res.Fields.Email)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "m1", llm.lastReq.Model)
	assert.Contains(t, llm.lastReq.System, "lead_classification")
}

func TestAdapterCachesByNormalisedText(t *testing.T) {
	llm := &fakeLLM{responses: []string{validReply}}
	a := testAdapter(llm, AdapterConfig{})

	_, err := a.Classify(context.Background(), "Need Home Loan 9876543210")
	require.NoError(t, err)
	res, err := a.Classify(context.Background(), "  need home loan 9876543210 ")
	require.NoError(t, err)

	assert.Equal(t, 1, llm.callCount())
	assert.Equal(t, SourceCache, res.Source)
}

func TestAdapterRetriesThenFails(t *testing.T) {
	llm := &fakeLLM{errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")}}
	a := testAdapter(llm, AdapterConfig{Retries: 2})

	_, err := a.Classify(context.Background(), "text")
	require.ErrorIs(t, err, ErrClassificationUnavailable)
	assert.Equal(t, 3, llm.callCount())
}

func TestAdapterRejectsMalformedReplies(t *testing.T) {
	replies := map[string]string{
		"not json":         "sure, this is a lead",
		"missing priority": `{"isLead":true,"confidence":0.5,"fields":{},"reasoning":"x"}`,
		"bad priority":     `{"isLead":true,"confidence":0.5,"priority":"Urgent","fields":{},"reasoning":"x"}`,
		"confidence range": `{"isLead":true,"confidence":7,"priority":"High","fields":{},"reasoning":"x"}`,
		"unknown key":      `{"isLead":true,"confidence":0.5,"priority":"High","fields":{},"reasoning":"x","extra":1}`,
		"null fields":      `{"isLead":true,"confidence":0.5,"priority":"High","fields":null,"reasoning":"x"}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			a := testAdapter(&fakeLLM{responses: []string{reply}}, AdapterConfig{})
			_, err := a.Classify(context.Background(), "some text")
			require.ErrorIs(t, err, ErrClassificationUnavailable)
		})
	}
}

func TestAdapterTimeoutFallsBack(t *testing.T) {
	llm := &fakeLLM{block: true}
	a := testAdapter(llm, AdapterConfig{Timeout: 20 * time.Millisecond})

	quick := QuickCheck("phone 9876543210 needs 60k")
	require.True(t, quick.IsLead)

	start := time.Now()
	res := a.ClassifyWithFallback(context.Background(), "phone 9876543210 needs 60k", quick)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, quick, res)
}

func TestClassifyWithFallbackSkipsNonLeads(t *testing.T) {
	llm := &fakeLLM{responses: []string{validReply}}
	a := testAdapter(llm, AdapterConfig{})

	quick := QuickCheck("Good morning team")
	res := a.ClassifyWithFallback(context.Background(), "Good morning team", quick)

	assert.False(t, res.IsLead)
	assert.Zero(t, llm.callCount())
}

func TestClassifyWithFallbackMergesFields(t *testing.T) {
	llm := &fakeLLM{responses: []string{validReply}}
	a := testAdapter(llm, AdapterConfig{})

	text := "phone 9876543210 wants home loan"
	quick := QuickCheck(text)
	require.True(t, quick.IsLead)

	res := a.ClassifyWithFallback(context.Background(), text, quick)
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, "9876543210", res.Fields.Phone)
	assert.Equal(t, "ramesh@example.com", res.Fields.Email)
	assert.Equal(t, "Pune", res.Fields.LocationCity)
	assert.True(t, res.IsNewLead)
}

func TestNilAdapterUsesQuick(t *testing.T) {
	var a *Adapter
	quick := QuickCheck("phone 9876543210 amount 60k")
	assert.Equal(t, quick, a.ClassifyWithFallback(context.Background(), "x", quick))

	_, err := a.Classify(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClassificationUnavailable)
}
