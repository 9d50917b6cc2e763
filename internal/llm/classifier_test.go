package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docharvester/docharvester-go/internal/models"
)

// stubModel returns a canned response or error.
type stubModel struct {
	response string
	err      error
	prompts  []string
}

func (s *stubModel) GenerateWithSystem(_ context.Context, _, userPrompt string) (string, error) {
	s.prompts = append(s.prompts, userPrompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantLens models.LensType
		wantConf float64
		wantErr  bool
	}{
		{name: "well formed", response: "LOGIC|0.85", wantLens: models.LensLogic, wantConf: 0.85},
		{name: "whitespace", response: "  SOP | 0.6 \n", wantLens: models.LensSOP, wantConf: 0.6},
		{name: "lowercase lens", response: "gtm|0.5", wantLens: models.LensGTM, wantConf: 0.5},
		{name: "trailing field ignored", response: "CL|0.9|extra", wantLens: models.LensCL, wantConf: 0.9},
		{name: "unknown lens", response: "NOPE|0.9", wantErr: true},
		{name: "missing confidence", response: "LOGIC", wantErr: true},
		{name: "non numeric confidence", response: "LOGIC|high", wantErr: true},
		{name: "confidence above one", response: "LOGIC|1.5", wantErr: true},
		{name: "prose response", response: "I think this is technical documentation.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lens, conf, err := parseClassification(tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseClassification(%q) error = %v, wantErr %v", tt.response, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if lens != tt.wantLens || conf != tt.wantConf {
				t.Errorf("parseClassification(%q) = (%s, %v), want (%s, %v)",
					tt.response, lens, conf, tt.wantLens, tt.wantConf)
			}
		})
	}
}

func TestClassify_UsesModel(t *testing.T) {
	model := &stubModel{response: "SOP|0.8"}
	c := NewClassifier(model, nil)

	lens, conf, err := c.Classify(context.Background(), "Click the settings button to configure.", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if lens != models.LensSOP || conf != 0.8 {
		t.Errorf("Classify() = (%s, %v), want (SOP, 0.8)", lens, conf)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("model called %d times, want 1", len(model.prompts))
	}
}

func TestClassify_TruncatesLongText(t *testing.T) {
	model := &stubModel{response: "LOGIC|0.9"}
	c := NewClassifier(model, nil)

	long := strings.Repeat("architecture ", 500)
	if _, _, err := c.Classify(context.Background(), long, ""); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	// The prompt must not carry the full chunk text.
	if got := len(model.prompts[0]); got > maxClassifyChars+1000 {
		t.Errorf("prompt length %d suggests untruncated text", got)
	}
}

func TestClassify_FallsBackOnModelError(t *testing.T) {
	model := &stubModel{err: errors.New("connection refused")}
	c := NewClassifier(model, nil)

	lens, conf, err := c.Classify(context.Background(), "Follow this step by step guide to setup and configure.", "")
	if err != nil {
		t.Fatalf("Classify() error = %v, want fallback", err)
	}
	if lens != models.LensSOP {
		t.Errorf("fallback lens = %s, want SOP", lens)
	}
	if conf <= 0 || conf > 0.9 {
		t.Errorf("fallback confidence = %v, want (0, 0.9]", conf)
	}
}

func TestClassify_FallsBackOnGarbageResponse(t *testing.T) {
	model := &stubModel{response: "definitely a changelog"}
	c := NewClassifier(model, nil)

	lens, _, err := c.Classify(context.Background(), "bug fix release version changelog update", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if lens != models.LensCL {
		t.Errorf("fallback lens = %s, want CL", lens)
	}
}

func TestClassify_NilModel(t *testing.T) {
	c := NewClassifier(nil, nil)

	lens, conf, err := c.Classify(context.Background(), "market positioning and pricing strategy for customers", "")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if lens != models.LensGTM {
		t.Errorf("lens = %s, want GTM", lens)
	}
	if conf == 0 {
		t.Error("confidence = 0, want > 0")
	}
}

func TestRuleBasedClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLens models.LensType
		wantConf float64
	}{
		{
			name:     "no keywords",
			text:     "the quick brown fox",
			wantLens: models.LensLogic,
			wantConf: 0.3,
		},
		{
			name:     "single keyword",
			text:     "our system overview",
			wantLens: models.LensLogic,
			wantConf: 0.15,
		},
		{
			name:     "many keywords capped",
			text:     "architecture implementation algorithm system design component module function class api",
			wantLens: models.LensLogic,
			wantConf: 0.9,
		},
		{
			name:     "sop wins",
			text:     "step by step guide: click configure and setup",
			wantLens: models.LensSOP,
			wantConf: 0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lens, conf := RuleBasedClassify(tt.text)
			if lens != tt.wantLens {
				t.Errorf("RuleBasedClassify() lens = %s, want %s", lens, tt.wantLens)
			}
			if conf != tt.wantConf {
				t.Errorf("RuleBasedClassify() confidence = %v, want %v", conf, tt.wantConf)
			}
		})
	}
}
