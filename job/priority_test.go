package job_test

import (
	"encoding/json"
	"testing"

	"github.com/Milo6x/dutyleak-app-sub004/job"
)

func TestPriority_Order(t *testing.T) {
	if !(job.PriorityLow < job.PriorityMedium && job.PriorityMedium < job.PriorityHigh && job.PriorityHigh < job.PriorityUrgent) {
		t.Fatal("priority tiers out of order")
	}
}

func TestPriority_TextRoundTrip(t *testing.T) {
	for _, p := range []job.Priority{job.PriorityLow, job.PriorityMedium, job.PriorityHigh, job.PriorityUrgent} {
		t.Run(p.String(), func(t *testing.T) {
			data, err := json.Marshal(p)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var back job.Priority
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != p {
				t.Errorf("round-trip = %v, want %v", back, p)
			}
		})
	}
}

func TestPriority_ParseRejectsUnknown(t *testing.T) {
	if _, err := job.ParsePriority("critical"); err == nil {
		t.Error("expected error for unknown priority name")
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range job.Types() {
		parsed, err := job.ParseType(string(typ))
		if err != nil {
			t.Fatalf("ParseType(%q): %v", typ, err)
		}
		if parsed != typ {
			t.Errorf("ParseType(%q) = %q", typ, parsed)
		}
	}
	if _, err := job.ParseType("mine-bitcoin"); err == nil {
		t.Error("expected error for unknown type")
	}
}
