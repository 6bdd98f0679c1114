package summarizer

import "context"

// HistoryProvider fetches a thread's conversation history from the upstream
// engine (GET /threads/{id}/history). Only user/assistant turns matter here.
type HistoryProvider interface {
	History(ctx context.Context, threadID string) ([]Message, error)
}

// minKeepMessages is the floor below which trimming never drops further,
// even if the budget is already exceeded.
const minKeepMessages = 5

// estimateTokens is a cheap, dependency-free token estimate (~4 chars/token
// for English text), good enough for a budget guard rather than exact
// accounting.
func estimateTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)/4 + 1
	}
	return total
}

// TrimToBudget drops the oldest messages until the estimated token count
// fits the budget, always keeping at least minKeepMessages of the newest
// messages regardless of budget.
func TrimToBudget(msgs []Message, budget int) []Message {
	if len(msgs) <= minKeepMessages {
		return msgs
	}
	trimmed := msgs
	for len(trimmed) > minKeepMessages && estimateTokens(trimmed) > budget {
		trimmed = trimmed[1:]
	}
	return trimmed
}
