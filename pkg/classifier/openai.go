package classifier

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// openaiClassifier scores text with the moderation endpoint, which
// returns per-category scores without rewriting the input.
type openaiClassifier struct {
	client    openai.Client
	threshold float64
	logger    zerolog.Logger
}

func newOpenAI(cfg Config, logger zerolog.Logger) (Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai classifier requires an API key")
	}
	return &openaiClassifier{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		threshold: cfg.Threshold,
		logger:    logger.With().Str("component", "classifier_openai").Logger(),
	}, nil
}

func (c *openaiClassifier) Available() bool { return true }

func (c *openaiClassifier) Score(ctx context.Context, text string) (Verdict, error) {
	resp, err := c.client.Moderations.New(ctx, openai.ModerationNewParams{
		Model: openai.ModerationModelOmniModerationLatest,
		Input: openai.ModerationNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("openai moderation call failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return Verdict{}, fmt.Errorf("openai moderation returned no results")
	}

	result := resp.Results[0]
	confidence := maxCategoryScore(result.CategoryScores)

	return Verdict{
		Flagged:    result.Flagged && confidence >= c.threshold,
		Confidence: confidence,
		Redacted:   text,
	}, nil
}

func maxCategoryScore(scores openai.ModerationCategoryScores) float64 {
	max := 0.0
	for _, s := range []float64{
		scores.Harassment,
		scores.HarassmentThreatening,
		scores.Hate,
		scores.HateThreatening,
		scores.Illicit,
		scores.IllicitViolent,
		scores.SelfHarm,
		scores.SelfHarmInstructions,
		scores.SelfHarmIntent,
		scores.Sexual,
		scores.SexualMinors,
		scores.Violence,
		scores.ViolenceGraphic,
	} {
		if s > max {
			max = s
		}
	}
	return max
}
