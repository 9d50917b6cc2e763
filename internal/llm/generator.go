package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/docharvester/docharvester-go/internal/models"
)

// Per-lens generation prompt templates. %s slots: topic, project name,
// context.
var generationPrompts = map[models.LensType]string{
	models.LensLogic: `Generate technical documentation for "%s" in the %s project.

Context from existing documentation:
%s

Please create comprehensive technical documentation that includes:
1. Overview and purpose
2. Technical implementation details
3. Architecture and design decisions
4. Code examples or configurations where relevant
5. Integration points and dependencies

Make it detailed, accurate, and developer-friendly.`,

	models.LensSOP: `Generate a standard operating procedure for "%s" in the %s project.

Context from existing documentation:
%s

Please create a clear step-by-step guide that includes:
1. Purpose and scope
2. Prerequisites and requirements
3. Detailed step-by-step instructions
4. Screenshots or diagrams descriptions where helpful
5. Troubleshooting tips
6. Best practices

Make it user-friendly and easy to follow.`,

	models.LensGTM: `Generate go-to-market documentation for "%s" in the %s project.

Context from existing documentation:
%s

Please create compelling marketing content that includes:
1. Value proposition
2. Target audience and use cases
3. Key features and benefits
4. Competitive advantages
5. Success stories or case studies
6. Call to action

Make it persuasive and customer-focused.`,

	models.LensCL: `Generate changelog documentation for "%s" in the %s project.

Context from existing documentation:
%s

Please create a detailed changelog that includes:
1. Version information
2. New features and enhancements
3. Bug fixes and improvements
4. Breaking changes or deprecations
5. Migration guides if applicable
6. Future roadmap hints

Make it informative and well-organized.`,
}

// generalTopics name the fallback document generated when a lens has no
// specific missing topics.
var generalTopics = map[models.LensType]string{
	models.LensLogic: "Technical Architecture Overview",
	models.LensSOP:   "Getting Started Guide",
	models.LensGTM:   "Product Overview and Benefits",
	models.LensCL:    "Recent Updates and Improvements",
}

// GeneralTopic returns the default document topic for a lens.
func GeneralTopic(lens models.LensType) string {
	if topic, ok := generalTopics[lens]; ok {
		return topic
	}
	return fmt.Sprintf("%s Overview", lens)
}

// ContentGenerator produces synthetic documentation for coverage gaps.
type ContentGenerator struct {
	model Generator
}

// NewContentGenerator creates a generator backed by model.
func NewContentGenerator(model Generator) *ContentGenerator {
	return &ContentGenerator{model: model}
}

// GenerateDocument produces markdown content for one (lens, topic)
// pair, grounded on sample text from the project's existing chunks.
func (g *ContentGenerator) GenerateDocument(
	ctx context.Context,
	lens models.LensType,
	topic string,
	projectName string,
	contextChunks []string,
) (string, error) {
	if g.model == nil {
		return "", fmt.Errorf("no generation model configured")
	}

	// Cap context samples to keep the prompt bounded.
	samples := contextChunks
	if len(samples) > 5 {
		samples = samples[:5]
	}
	for i, s := range samples {
		if runes := []rune(s); len(runes) > 200 {
			samples[i] = string(runes[:200]) + "..."
		}
	}
	contextText := strings.Join(samples, "\n\n")
	if contextText == "" {
		contextText = "(no existing documentation)"
	}

	template, ok := generationPrompts[lens]
	if !ok {
		template = `Generate documentation for "%s" in the %s project.

Context from existing documentation:
%s`
	}

	systemPrompt := fmt.Sprintf(`You are a technical documentation expert specializing in creating %s documentation.
Your task is to generate high-quality, accurate, and useful documentation based on the provided context and requirements.
Write in a clear, professional tone appropriate for the documentation type.
Use markdown formatting for better readability.`, lens)

	prompt := fmt.Sprintf(template, topic, projectName, contextText)

	content, err := g.model.GenerateWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generate %s document: %w", lens, err)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("generate %s document: empty response", lens)
	}
	return content, nil
}
