package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockClientComplete(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: " {\"ok\":true} "}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4)},
	}}
	c := NewBedrockClient(api, "anthropic.claude-3-haiku")

	resp, err := c.Complete(context.Background(), Request{System: "sys", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, int32(10), resp.Usage.InputTokens)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.System, 1)
	require.Len(t, api.input.Messages, 1)
}

func TestBedrockClientErrors(t *testing.T) {
	c := NewBedrockClient(&fakeConverse{err: errors.New("throttled")}, "m")
	_, err := c.Complete(context.Background(), Request{Text: "hello"})
	assert.ErrorContains(t, err, "throttled")

	c = NewBedrockClient(&fakeConverse{out: &bedrockruntime.ConverseOutput{}}, "m")
	_, err = c.Complete(context.Background(), Request{Text: "hello"})
	assert.Error(t, err)

	_, err = NewBedrockClient(&fakeConverse{}, "").Complete(context.Background(), Request{Text: "x"})
	assert.ErrorContains(t, err, "model id")
}
