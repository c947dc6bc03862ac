// Package api provides the Anthropic-backed completion provider and the
// tool-capable execution runtime used by agents.
package api

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// ErrNoAPIKey is returned when no Anthropic API key is configured.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY environment variable is not set")

// DefaultModel is used when the configuration names no model.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// messageSender is the slice of the SDK the provider calls.
type messageSender interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client wraps the Anthropic SDK client with token tracking.
type Client struct {
	inner    anthropic.Client
	messages messageSender
	model    anthropic.Model
	tracker  *TokenTracker

	maxTokens     int64
	maxIterations int
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is the Claude model to use (e.g., anthropic.ModelClaudeSonnet4_20250514).
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// MaxTokens caps each response. Zero uses 4096.
	MaxTokens int64
	// MaxIterations caps model turns in one tool-using run. Zero uses 10.
	MaxIterations int
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		// AWS Bedrock path
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		// Traditional API key path
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, ErrNoAPIKey
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	// Translate model name for Bedrock
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	c := &Client{
		inner:         inner,
		model:         model,
		tracker:       NewTokenTracker(),
		maxTokens:     cfg.MaxTokens,
		maxIterations: cfg.MaxIterations,
	}
	c.messages = &c.inner.Messages
	c.applyDefaults()
	return c, nil
}

func (c *Client) applyDefaults() {
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	if c.maxIterations <= 0 {
		c.maxIterations = 10
	}
	if c.tracker == nil {
		c.tracker = NewTokenTracker()
	}
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	// Map common model names to Bedrock inference profiles (with us. prefix for cross-region)
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	// If not in map, return as-is (might already be Bedrock format or a custom model)
	return model
}

// Model returns the configured model name.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token tracker for this client.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// Usage reports tokens spent through this client so far, priced for its
// model.
func (c *Client) Usage() Usage {
	u := c.tracker.Usage()
	u.CostUSD = EstimateCost(c.model, u.InputTokens, u.OutputTokens)
	return u
}

// Usage is a snapshot of tracked token usage.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Calls        int
	// CostUSD is zero when read from a bare TokenTracker.
	CostUSD float64
}

// TokenTracker tracks token usage across API calls. It is shared by every
// agent run on the client, so it is safe for concurrent use.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Usage returns the totals tracked so far.
func (t *TokenTracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Usage{InputTokens: t.inputTok, OutputTokens: t.outputTok, Calls: t.calls}
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok = 0
	t.outputTok = 0
	t.calls = 0
}

// price is USD per million tokens.
type price struct {
	input, output float64
}

// Approximate list prices by model family. Unknown models are priced as
// Sonnet.
var familyPrices = map[string]price{
	"haiku":  {input: 1.0, output: 5.0},
	"sonnet": {input: 3.0, output: 15.0},
	"opus":   {input: 15.0, output: 75.0},
}

// EstimateCost prices a token count for model.
func EstimateCost(model anthropic.Model, input, output int64) float64 {
	p := familyPrices["sonnet"]
	name := strings.ToLower(string(model))
	for family, fp := range familyPrices {
		if strings.Contains(name, family) {
			p = fp
			break
		}
	}
	return float64(input)/1_000_000*p.input + float64(output)/1_000_000*p.output
}
