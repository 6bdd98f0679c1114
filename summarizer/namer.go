package summarizer

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/weavehub/weave/apperr"
)

// Namer produces a {name, summary} pair for a thread's trimmed history.
type Namer interface {
	Name(ctx context.Context, messages []Message) (NamingResult, error)
}

const namingSystemPrompt = `You name and summarize chat threads. Given the conversation so far, ` +
	`respond with a compact JSON object {"name": string, "summary": string}. ` +
	`The name is a short title (under 8 words); the summary is one or two sentences.`

// ChatClient captures the subset of the OpenAI client the namer uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAINamer implements Namer via a JSON-mode chat completion call.
type OpenAINamer struct {
	client ChatClient
	model  string
}

func NewOpenAINamer(client ChatClient, model string) *OpenAINamer {
	return &OpenAINamer{client: client, model: model}
}

func (n *OpenAINamer) Name(ctx context.Context, messages []Message) (NamingResult, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: namingSystemPrompt,
	})
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    n.model,
		Messages: chatMessages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return NamingResult{}, apperr.WrapUpstream(err, "naming model call")
	}
	if len(resp.Choices) == 0 {
		return NamingResult{}, apperr.WrapUpstream(nil, "naming model returned no choices")
	}

	var result NamingResult
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return NamingResult{}, apperr.WrapUpstream(err, "decoding naming model response")
	}
	return result, nil
}
