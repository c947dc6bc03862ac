package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// fakeSender replays canned responses and records requests.
type fakeSender struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []anthropic.MessageNewParams
}

func (f *fakeSender) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no canned response")
	}
	raw := f.responses[0]
	f.responses = f.responses[1:]
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func newTestClient(t *testing.T, sender messageSender) *Client {
	t.Helper()
	c := &Client{messages: sender, model: DefaultModel}
	c.applyDefaults()
	return c
}

const textResponse = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-20250514",
  "content": [{"type": "text", "text": "Hello there."}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 12, "output_tokens": 8}
}`
