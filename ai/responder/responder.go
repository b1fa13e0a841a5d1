package responder

import (
	"Solvextra/entity"
	"Solvextra/internal/config"
	"Solvextra/internal/lib/sl"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = `You are a customer support assistant. Answer from the knowledge base.
Respond with a JSON object: {"content": "<reply text>", "should_escalate": <true if the customer needs a human agent>, "should_close_with_satisfaction": <true if the customer is satisfied and wants to end the conversation>}.`

// Responder wraps the language model behind the engine's narrow contract:
// reply text plus two intent flags.
type Responder struct {
	client       *openai.Client
	model        string
	systemPrompt string
	knowledge    string
	log          *slog.Logger
}

// New returns nil when the responder is disabled or paused, which the
// engine treats as "every open conversation needs admin attention".
func New(conf *config.Config, logger *slog.Logger) *Responder {
	if !conf.OpenAI.Enabled || conf.OpenAI.Paused || conf.OpenAI.ApiKey == "" {
		return nil
	}
	systemPrompt := conf.OpenAI.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Responder{
		client:       openai.NewClient(conf.OpenAI.ApiKey),
		model:        conf.OpenAI.Model,
		systemPrompt: systemPrompt,
		knowledge:    conf.OpenAI.Knowledge,
		log:          logger.With(sl.Module("responder")),
	}
}

// Generate runs one completion over the recent history and parses the
// structured reply.
func (r *Responder) Generate(ctx context.Context, text string, history []entity.Message) (*entity.BotReply, error) {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: r.systemPrompt,
	}}
	if r.knowledge != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Knowledge base:\n" + r.knowledge,
		})
	}

	// History arrives newest first; replay it oldest first.
	for i := len(history) - 1; i >= 0; i-- {
		role := openai.ChatMessageRoleAssistant
		if history[i].Role == entity.RoleCustomer {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: history[i].Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion")
	}

	return r.parseReply(resp.Choices[0].Message.Content), nil
}

// parseReply decodes the structured reply, falling back to the raw text
// with both flags false when the model did not return valid JSON.
func (r *Responder) parseReply(raw string) *entity.BotReply {
	var reply entity.BotReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		r.log.With(
			slog.String("response", raw),
			sl.Err(err),
		).Error("unmarshalling responder reply")
		return &entity.BotReply{Content: raw}
	}
	return &reply
}
