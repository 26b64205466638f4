package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// highDetailFrameTokens is the cost of one 640x360 image at detail "high":
// 85 base tokens plus 170 for each of its two 512px tiles.
const highDetailFrameTokens = 85 + 2*170

// OpenAICounter counts tokens for OpenAI models using tiktoken.
type OpenAICounter struct {
	matcher *ModelMatcher

	cacheMu    sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher: NewModelMatcher(
			// "o" prefixes cover the o1/o3/o4 reasoning models
			[]string{"gpt-", "o1", "o3", "o4", "chatgpt-"},
			nil,
		),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

func (c *OpenAICounter) getCodec(model string) (tokenizer.Codec, error) {
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps model names to encodings.
//
// - O200kBase: GPT-5, GPT-4.1, GPT-4o and the o-series
// - Cl100kBase: GPT-4 and GPT-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		// Newer and unknown models use o200k_base
		return tokenizer.O200kBase
	}
}

// CountTokens counts the system and user messages, the tool definitions and
// the attached frames.
func (c *OpenAICounter) CountTokens(ctx context.Context, req *Request) (*Count, error) {
	codec, err := c.getCodec(req.Model)
	if err != nil {
		return nil, err
	}

	// Chat format: 3 tokens per message, 1 for the role, 3 for priming the reply.
	const tokensPerMessage, tokensPerRole = 3, 1
	encode := func(s string) int {
		ids, _, _ := codec.Encode(s)
		return len(ids)
	}

	total := 3
	if req.System != "" {
		total += tokensPerMessage + tokensPerRole + encode(req.System)
	}
	total += tokensPerMessage + tokensPerRole + encode(req.Prompt)

	for _, tool := range req.Tools {
		total += encode(tool.Name) + encode(tool.Description)
		if tool.Parameters != nil {
			params, _ := json.Marshal(tool.Normalized())
			total += encode(string(params))
		}
		total += 7 // overhead per tool definition
	}

	total += req.Images * highDetailFrameTokens

	return &Count{
		InputTokens: total,
		Model:       req.Model,
		Estimated:   false,
	}, nil
}

// SupportsModel returns true for OpenAI models.
func (c *OpenAICounter) SupportsModel(model string) bool {
	return c.matcher.Matches(model)
}

// CountText counts tokens for a plain text string.
func (c *OpenAICounter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
