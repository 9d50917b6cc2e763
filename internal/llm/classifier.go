package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docharvester/docharvester-go/internal/models"
)

// maxClassifyChars bounds the text sent to the model per chunk.
const maxClassifyChars = 1000

// Generator is the text-generation surface the classifier needs.
// *Model satisfies it; tests substitute a stub.
type Generator interface {
	GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier assigns a lens type and confidence score to chunk text.
// When no model is configured, or a model call fails, it falls back to
// keyword matching.
type Classifier struct {
	model  Generator
	logger *slog.Logger
}

// NewClassifier creates a classifier. model may be nil, in which case
// every classification is rule-based.
func NewClassifier(model Generator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{model: model, logger: logger}
}

// Classify returns the lens type and confidence for a chunk of text.
// Deterministic for a fixed model version and identical input.
func (c *Classifier) Classify(ctx context.Context, text, projectContext string) (models.LensType, float64, error) {
	if c.model == nil {
		lens, conf := RuleBasedClassify(text)
		return lens, conf, nil
	}

	prompt := buildClassificationPrompt(text, projectContext)
	response, err := c.model.GenerateWithSystem(ctx, "You are a documentation classifier.", prompt)
	if err != nil {
		c.logger.Warn("llm classification failed, falling back to rules", "error", err)
		lens, conf := RuleBasedClassify(text)
		return lens, conf, nil
	}

	lens, conf, err := parseClassification(response)
	if err != nil {
		c.logger.Warn("unparseable classification response", "response", response, "error", err)
		lens, conf = RuleBasedClassify(text)
	}
	return lens, conf, nil
}

func buildClassificationPrompt(text, projectContext string) string {
	var descriptions strings.Builder
	for _, lens := range models.AllLensTypes {
		fmt.Fprintf(&descriptions, "- %s: %s\n", lens, models.LensDescriptions[lens])
	}

	if projectContext == "" {
		projectContext = "General software documentation"
	}

	truncated := text
	if runes := []rune(text); len(runes) > maxClassifyChars {
		truncated = string(runes[:maxClassifyChars])
	}

	return fmt.Sprintf(`Classify the following text chunk into one of these documentation lens types:

%s
Project Context: %s

Text to classify:
%s

Respond with:
1. The lens type (LOGIC, SOP, GTM, or CL)
2. Confidence score (0.0 to 1.0)

Format: LENS_TYPE|CONFIDENCE
Example: LOGIC|0.85
`, descriptions.String(), projectContext, truncated)
}

// parseClassification parses a "LENS_TYPE|CONFIDENCE" response.
func parseClassification(response string) (models.LensType, float64, error) {
	parts := strings.Split(strings.TrimSpace(response), "|")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("expected LENS_TYPE|CONFIDENCE, got %q", response)
	}

	lens := models.LensType(strings.ToUpper(strings.TrimSpace(parts[0])))
	if !models.ValidLensType(lens) {
		return "", 0, fmt.Errorf("unknown lens type %q", parts[0])
	}

	conf, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return "", 0, fmt.Errorf("parse confidence: %w", err)
	}
	if conf < 0 || conf > 1 {
		return "", 0, fmt.Errorf("confidence %v outside [0,1]", conf)
	}

	return lens, conf, nil
}
