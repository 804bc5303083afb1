package anthropic

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartnotes/internal/ai/aierr"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestComplete_TextBlocks(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "go, "},
			{Type: "tool_use", Name: "lookup"},
			{Type: "text", Text: "동시성"},
		},
	}}
	c := New(stub, "", 0)

	got, err := c.Complete(context.Background(), "태그:")
	require.NoError(t, err)
	assert.Equal(t, "go, 동시성", got)

	assert.Equal(t, sdk.Model(DefaultModel), stub.lastParams.Model)
	assert.EqualValues(t, DefaultMaxTokens, stub.lastParams.MaxTokens)
	require.Len(t, stub.lastParams.Messages, 1)
	assert.Equal(t, sdk.MessageParamRoleUser, stub.lastParams.Messages[0].Role)
	assert.Equal(t, "anthropic", c.Provider())
}

func TestComplete_APIErrorBecomesUpstreamError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	stub := &stubMessagesClient{err: &sdk.Error{
		StatusCode: http.StatusTooManyRequests,
		Request:    req,
		Response:   &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"12"}}},
	}}

	_, err := New(stub, "claude-x", 64).Complete(context.Background(), "p")
	var up *aierr.UpstreamError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, "anthropic", up.Provider)
	assert.Equal(t, http.StatusTooManyRequests, up.StatusCode)
	assert.Equal(t, 12*time.Second, up.RetryAfter)

	e := aierr.Classify(err)
	assert.Equal(t, aierr.TypeRateLimit, e.Type)
	assert.Equal(t, 12*time.Second, e.RetryAfter)
}

func TestComplete_TransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	_, err := New(&stubMessagesClient{err: boom}, "m", 1).Complete(context.Background(), "p")
	assert.Same(t, boom, err)
}

func TestNewFromAPIKey_RequiresKey(t *testing.T) {
	_, err := NewFromAPIKey("", "m", 0)
	assert.Error(t, err)

	c, err := NewFromAPIKey("sk-test", "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}
