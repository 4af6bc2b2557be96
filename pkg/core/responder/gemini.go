package responder

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/replitone/replitone/pkg/core/types"
)

// Gemini backs the responder capability with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini responder. The default model is used when model
// is empty.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, types.WrapFault(types.FaultResponderError, "create gemini client", err)
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

// Name returns the capability identifier.
func (g *Gemini) Name() string { return "gemini" }

// Generate maps the history onto Gemini contents (system entries become the
// system instruction, assistant entries the model role) and returns the
// response text.
func (g *Gemini) Generate(ctx context.Context, history []types.Message) (string, error) {
	var system strings.Builder
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case types.RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n")
			}
			system.WriteString(msg.Content)
		case types.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}

	var cfg *genai.GenerateContentConfig
	if system.Len() > 0 {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system.String()}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", types.WrapFault(types.FaultResponderError, "generate reply", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", types.NewFault(types.FaultResponderError, "gemini returned no text")
	}
	return text, nil
}
