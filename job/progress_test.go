package job_test

import (
	"errors"
	"testing"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
	"github.com/Milo6x/dutyleak-app-sub004/job"
)

func TestProgress_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       job.Progress
		wantErr bool
	}{
		{"zero", job.Progress{}, false},
		{"in bounds", job.Progress{Total: 10, Completed: 4, Failed: 2}, false},
		{"exactly full", job.Progress{Total: 10, Completed: 8, Failed: 2}, false},
		{"overflow", job.Progress{Total: 10, Completed: 9, Failed: 2}, true},
		{"negative total", job.Progress{Total: -1}, true},
		{"negative completed", job.Progress{Total: 5, Completed: -2}, true},
		{"negative failed", job.Progress{Total: 5, Failed: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr && !errors.Is(err, dutyleak.ErrInvalidProgress) {
				t.Fatalf("expected ErrInvalidProgress, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProgress_AdvancesFrom(t *testing.T) {
	prev := job.Progress{Total: 10, Completed: 3, Failed: 1}

	tests := []struct {
		name    string
		next    job.Progress
		wantErr bool
	}{
		{"advance completed", job.Progress{Total: 10, Completed: 4, Failed: 1}, false},
		{"advance failed", job.Progress{Total: 10, Completed: 3, Failed: 2}, false},
		{"same counters", job.Progress{Total: 10, Completed: 3, Failed: 1}, false},
		{"grow total", job.Progress{Total: 20, Completed: 3, Failed: 1}, false},
		{"shrink total within bounds", job.Progress{Total: 4, Completed: 3, Failed: 1}, false},
		{"completed regression", job.Progress{Total: 10, Completed: 2, Failed: 1}, true},
		{"failed regression", job.Progress{Total: 10, Completed: 3, Failed: 0}, true},
		{"shrink total below done", job.Progress{Total: 3, Completed: 3, Failed: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.next.AdvancesFrom(prev)
			if tt.wantErr && !errors.Is(err, dutyleak.ErrInvalidProgress) {
				t.Fatalf("expected ErrInvalidProgress, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		name string
		p    job.Progress
		want float64
	}{
		{"zero total", job.Progress{}, 0},
		{"half", job.Progress{Total: 10, Completed: 4, Failed: 1}, 50},
		{"complete", job.Progress{Total: 8, Completed: 8}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Percent(); got != tt.want {
				t.Errorf("Percent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureFromError(t *testing.T) {
	typed := job.NewError("rate_limited", "classification API throttled").
		WithDetail("retryAfter", "30s")
	f := job.FailureFromError(typed)
	if f.Code != "rate_limited" {
		t.Errorf("Code = %q, want rate_limited", f.Code)
	}
	if f.Details["retryAfter"] != "30s" {
		t.Errorf("Details = %v", f.Details)
	}

	plain := job.FailureFromError(errors.New("boom"))
	if plain.Code != job.CodeHandler {
		t.Errorf("Code = %q, want %q", plain.Code, job.CodeHandler)
	}
	if plain.Message != "boom" {
		t.Errorf("Message = %q", plain.Message)
	}

	if job.FailureFromError(nil) != nil {
		t.Error("expected nil failure for nil error")
	}
}
