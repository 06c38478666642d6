package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/interview-coach/internal/llm"
	"github.com/sjawhar/interview-coach/internal/storage"
)

const (
	DefaultAmount = 5
	MaxAmount     = 20
)

var ErrInvalidParams = errors.New("invalid interview parameters")

var questionSchema = llm.Schema{
	Name: "interview_questions",
	Definition: json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["questions"],
  "properties": {"questions": {"type": "array", "items": {"type": "string"}}}
}`),
}

type Creator interface {
	CreateInterview(ctx context.Context, iv storage.Interview) error
}

type Params struct {
	Role      string   `json:"role"`
	Level     string   `json:"level"`
	Type      string   `json:"type"`
	TechStack []string `json:"techstack"`
	Amount    int      `json:"amount"`
	UserID    string   `json:"userId"`
}

// Generator asks the model for a question set and stores it as a finalized
// interview the candidate can start.
type Generator struct {
	client llm.Client
	store  Creator
	sleep  func(time.Duration)
	now    func() time.Time
	newID  func() string
}

func NewGenerator(client llm.Client, store Creator) *Generator {
	return &Generator{
		client: client,
		store:  store,
		sleep:  time.Sleep,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (g *Generator) Generate(ctx context.Context, p Params) (storage.Interview, error) {
	p, err := normalize(p)
	if err != nil {
		return storage.Interview{}, err
	}

	questions, err := g.ask(ctx, p)
	if err != nil {
		return storage.Interview{}, err
	}

	iv := storage.Interview{
		ID:        g.newID(),
		Role:      p.Role,
		Level:     p.Level,
		Type:      p.Type,
		CreatedAt: g.now().UTC(),
		Finalized: true,
		Questions: questions,
		TechStack: p.TechStack,
		UserID:    p.UserID,
	}
	if err := g.store.CreateInterview(ctx, iv); err != nil {
		return storage.Interview{}, fmt.Errorf("store interview: %w", err)
	}
	return iv, nil
}

func (g *Generator) ask(ctx context.Context, p Params) ([]string, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(p)}}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		raw, err := g.client.CompleteJSON(ctx, messages, questionSchema)
		if err == nil {
			return parseQuestions(raw, p.Amount)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(backoff)-1 {
			g.sleep(backoff[attempt])
		}
	}
	return nil, fmt.Errorf("generate questions failed after retries: %w", lastErr)
}

func buildPrompt(p Params) string {
	return fmt.Sprintf(`Prepare questions for a job interview.
The job role is %s.
The job experience level is %s.
The tech stack used in the job is: %s.
The focus between behavioural and technical questions should lean towards: %s.
The amount of questions required is: %d.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or any other special characters which might break the voice assistant.`,
		p.Role, p.Level, strings.Join(p.TechStack, ", "), p.Type, p.Amount)
}

// parseQuestions accepts either {"questions": [...]} or a bare JSON array.
func parseQuestions(raw string, amount int) ([]string, error) {
	raw = llm.StripFences(raw)

	var list []string
	var wrapped struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Questions != nil {
		list = wrapped.Questions
	} else if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("parse questions response: %w", err)
	}

	out := make([]string, 0, len(list))
	for _, q := range list {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == amount {
			break
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no questions")
	}
	return out, nil
}

func normalize(p Params) (Params, error) {
	p.Role = strings.TrimSpace(p.Role)
	p.Level = strings.TrimSpace(p.Level)
	p.Type = strings.TrimSpace(p.Type)
	p.UserID = strings.TrimSpace(p.UserID)

	if p.Role == "" || p.UserID == "" {
		return p, fmt.Errorf("%w: role and userId are required", ErrInvalidParams)
	}
	if p.Amount == 0 {
		p.Amount = DefaultAmount
	}
	if p.Amount < 0 || p.Amount > MaxAmount {
		return p, fmt.Errorf("%w: amount must be between 1 and %d", ErrInvalidParams, MaxAmount)
	}

	stack := make([]string, 0, len(p.TechStack))
	for _, t := range p.TechStack {
		if t = strings.TrimSpace(t); t != "" {
			stack = append(stack, t)
		}
	}
	p.TechStack = stack
	return p, nil
}
