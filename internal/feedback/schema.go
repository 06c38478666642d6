package feedback

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sjawhar/interview-coach/internal/llm"
	"github.com/sjawhar/interview-coach/internal/storage"
)

//go:embed schema.json
var schemaJSON []byte

// Categories is the closed rubric, in the order reports list it.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem-Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

var responseSchema = mustCompileSchema(schemaJSON)

func mustCompileSchema(raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile feedback schema: %v", err))
	}
	return s
}

// Schema returns the response schema sent to the model.
func Schema() llm.Schema {
	return llm.Schema{Name: "interview_feedback", Definition: json.RawMessage(schemaJSON)}
}

type modelCategory struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

type modelResponse struct {
	TotalScore          float64         `json:"totalScore"`
	CategoryScores      []modelCategory `json:"categoryScores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areasForImprovement"`
	FinalAssessment     string          `json:"finalAssessment"`
}

// evaluation is a schema-valid, normalized model answer.
type evaluation struct {
	TotalScore          int
	CategoryScores      []storage.CategoryScore
	Strengths           []string
	AreasForImprovement []string
	FinalAssessment     string
}

// parseEvaluation validates the raw model answer against the response schema
// and the closed category set.
func parseEvaluation(raw string) (evaluation, error) {
	res, err := responseSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return evaluation{}, fmt.Errorf("decode model response: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return evaluation{}, fmt.Errorf("model response violates schema: %s", strings.Join(msgs, "; "))
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return evaluation{}, fmt.Errorf("decode model response: %w", err)
	}

	categories, err := normalizeCategories(resp.CategoryScores)
	if err != nil {
		return evaluation{}, err
	}

	return evaluation{
		TotalScore:          int(math.Round(resp.TotalScore)),
		CategoryScores:      categories,
		Strengths:           nonNil(resp.Strengths),
		AreasForImprovement: nonNil(resp.AreasForImprovement),
		FinalAssessment:     strings.TrimSpace(resp.FinalAssessment),
	}, nil
}

var errCategories = errors.New("category scores do not match rubric")

// normalizeCategories drops names outside the rubric and returns exactly one
// entry per rubric category in rubric order.
func normalizeCategories(in []modelCategory) ([]storage.CategoryScore, error) {
	byName := make(map[string]storage.CategoryScore, len(Categories))
	for _, c := range in {
		name, ok := canonicalCategory(c.Name)
		if !ok {
			continue
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", errCategories, name)
		}
		byName[name] = storage.CategoryScore{
			Name:    name,
			Score:   int(math.Round(c.Score)),
			Comment: strings.TrimSpace(c.Comment),
		}
	}

	out := make([]storage.CategoryScore, 0, len(Categories))
	for _, name := range Categories {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing category %q", errCategories, name)
		}
		out = append(out, c)
	}
	return out, nil
}

func canonicalCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range Categories {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
