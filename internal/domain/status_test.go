package domain

import "testing"

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from PipelineStatus
		to   PipelineStatus
		want bool
	}{
		{"fetch to classify", StatusFetching, StatusClassifying, true},
		{"classify to analyze", StatusClassifying, StatusAnalyzing, true},
		{"analyze to done", StatusAnalyzing, StatusDone, true},
		{"no stage skipping", StatusFetching, StatusAnalyzing, false},
		{"no going back", StatusClassifying, StatusFetching, false},
		{"redelivery re-asserts same state", StatusClassifying, StatusClassifying, true},
		{"any state can fail", StatusFetching, StatusFailed, true},
		{"analyzing can fail", StatusAnalyzing, StatusFailed, true},
		{"done restarts", StatusDone, StatusFetching, true},
		{"failed restarts", StatusFailed, StatusFetching, true},
		{"done cannot resume mid-pipeline", StatusDone, StatusClassifying, false},
		{"failed cannot resume mid-pipeline", StatusFailed, StatusAnalyzing, false},
		{"unknown target rejected", StatusFetching, PipelineStatus("PAUSED"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s -> %s: got %t, want %t", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestParsePipelineStatus(t *testing.T) {
	if s, err := ParsePipelineStatus("CLASSIFYING"); err != nil || s != StatusClassifying {
		t.Fatalf("got (%v, %v)", s, err)
	}
	if _, err := ParsePipelineStatus("classifying"); err == nil {
		t.Fatal("expected lowercase value to be rejected")
	}
	if _, err := ParsePipelineStatus(""); err == nil {
		t.Fatal("expected empty value to be rejected")
	}
}
