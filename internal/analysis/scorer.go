// ABOUTME: Sentiment scorers for inbound customer messages.
// ABOUTME: A built-in lexicon scorer works offline; the OpenAI scorer asks a chat model for a rating.

package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoScore indicates the scorer could not produce a number.
var ErrNoScore = errors.New("no sentiment score")

// Scorer rates text sentiment in [-1, 1]; negative is unhappy, positive is happy.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// LexiconScorer scores text by averaging per-word weights from a small
// English and Vietnamese lexicon.
type LexiconScorer struct {
	weights map[string]float64
}

// defaultLexicon holds AFINN-style weights scaled to [-1, 1].
var defaultLexicon = map[string]float64{
	// English
	"good": 0.6, "great": 0.8, "excellent": 1, "love": 0.8, "thanks": 0.4, "thank": 0.4,
	"happy": 0.6, "interested": 0.5, "nice": 0.6, "awesome": 0.8, "perfect": 0.8, "yes": 0.2,
	"bad": -0.6, "terrible": -1, "awful": -0.8, "hate": -0.8, "scam": -1, "angry": -0.8,
	"slow": -0.4, "problem": -0.4, "complaint": -0.6, "refund": -0.4, "no": -0.2, "worst": -1,
	// Vietnamese (single syllables as tokenized)
	"tốt": 0.6, "hay": 0.5, "thích": 0.6, "cảm": 0.2, "ơn": 0.4, "tuyệt": 0.8, "vời": 0.4,
	"quan": 0.1, "tâm": 0.3, "đồng": 0.1, "ý": 0.2,
	"tệ": -0.8, "lừa": -0.8, "đảo": -0.4, "chậm": -0.4, "ghét": -0.8, "phàn": -0.4, "nàn": -0.4,
	"khiếu": -0.4, "nại": -0.4, "không": -0.2,
}

// NewLexiconScorer creates a scorer with the built-in lexicon.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{weights: defaultLexicon}
}

// Score implements Scorer. Text with no lexicon hits scores 0.
func (s *LexiconScorer) Score(_ context.Context, text string) (float64, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, nil
	}

	var sum float64
	hits := 0
	for _, tok := range tokens {
		if w, ok := s.weights[tok]; ok {
			sum += w
			hits++
		}
	}
	if hits == 0 {
		return 0, nil
	}
	return clamp(sum/float64(hits), -1, 1), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// chatCompleter is the slice of the OpenAI client the scorer needs.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

const scorerPrompt = "You rate customer message sentiment for a support chatbot. " +
	"Reply with only a number between -1 (very negative) and 1 (very positive)."

// OpenAIScorer asks a chat model to rate sentiment.
type OpenAIScorer struct {
	completions chatCompleter
	model       string
}

// NewOpenAIScorer creates a scorer using the given API key and model.
func NewOpenAIScorer(apiKey, model string) *OpenAIScorer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIScorer{completions: &client.Chat.Completions, model: model}
}

// Score implements Scorer.
func (s *OpenAIScorer) Score(ctx context.Context, text string) (float64, error) {
	resp, err := s.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scorerPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("requesting sentiment score: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return 0, ErrNoScore
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.ParseFloat(content, 64)
	if err != nil || math.IsNaN(score) {
		return 0, fmt.Errorf("%w: model replied %q", ErrNoScore, content)
	}
	return clamp(score, -1, 1), nil
}

// FallbackScorer tries Primary and falls back to Secondary when it fails.
type FallbackScorer struct {
	Primary   Scorer
	Secondary Scorer
}

// Score implements Scorer.
func (f FallbackScorer) Score(ctx context.Context, text string) (float64, error) {
	score, err := f.Primary.Score(ctx, text)
	if err == nil {
		return score, nil
	}
	if f.Secondary == nil {
		return 0, err
	}
	return f.Secondary.Score(ctx, text)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
