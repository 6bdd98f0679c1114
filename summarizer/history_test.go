package summarizer

import "testing"

func TestTrimToBudgetKeepsMinimum(t *testing.T) {
	msgs := make([]Message, 10)
	for i := range msgs {
		msgs[i] = Message{Role: "user", Content: "this is a fairly long message used to blow the budget"}
	}
	trimmed := TrimToBudget(msgs, 1)
	if len(trimmed) != minKeepMessages {
		t.Fatalf("expected trim to stop at the floor of %d messages, got %d", minKeepMessages, len(trimmed))
	}
}

func TestTrimToBudgetNoOpUnderBudget(t *testing.T) {
	msgs := []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	trimmed := TrimToBudget(msgs, 20000)
	if len(trimmed) != len(msgs) {
		t.Fatalf("expected no trimming when under budget")
	}
}

func TestTrimToBudgetDropsOldestFirst(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "oldest"},
		{Role: "assistant", Content: "m2"},
		{Role: "user", Content: "m3"},
		{Role: "assistant", Content: "m4"},
		{Role: "user", Content: "m5"},
		{Role: "assistant", Content: "newest and this one is padded to be much longer than the rest"},
	}
	trimmed := TrimToBudget(msgs, 10)
	if len(trimmed) != minKeepMessages {
		t.Fatalf("expected trimming down to the floor, got %d", len(trimmed))
	}
	for _, m := range trimmed {
		if m.Content == "oldest" {
			t.Fatalf("expected the oldest message to be dropped first")
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.TokenBudget != 20000 || cfg.BatchLimit != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
