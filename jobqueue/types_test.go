package jobqueue

import "testing"

func TestJobIsTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	}
	for status, want := range cases {
		j := &Job{Status: status}
		if got := j.IsTerminal(); got != want {
			t.Errorf("Job{Status: %s}.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestQueuePositionStep(t *testing.T) {
	if got := queuePositionStep(0); got != "starting" {
		t.Errorf("expected starting at depth 0, got %q", got)
	}
	if got := queuePositionStep(3); got != "queued" {
		t.Errorf("expected queued at nonzero depth, got %q", got)
	}
}
