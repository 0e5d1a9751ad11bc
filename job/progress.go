package job

import (
	"fmt"

	dutyleak "github.com/Milo6x/dutyleak-app-sub004"
)

// Progress counts the sub-units of work inside a job. Completed and
// Failed only ever grow; their sum never exceeds Total. Percentage is
// derived, never stored.
type Progress struct {
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Current   string `json:"current,omitempty"`
}

// Done returns the number of sub-units that finished, successfully or not.
func (p Progress) Done() int {
	return p.Completed + p.Failed
}

// Remaining returns the number of sub-units still outstanding.
func (p Progress) Remaining() int {
	return p.Total - p.Done()
}

// Percent derives completion as a fraction of Total in [0, 100].
// A zero Total reads as 0.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done()) / float64(p.Total) * 100
}

// Validate checks the counter bounds.
func (p Progress) Validate() error {
	if p.Total < 0 || p.Completed < 0 || p.Failed < 0 {
		return fmt.Errorf("%w: negative counter (total=%d completed=%d failed=%d)",
			dutyleak.ErrInvalidProgress, p.Total, p.Completed, p.Failed)
	}
	if p.Done() > p.Total {
		return fmt.Errorf("%w: completed+failed %d exceeds total %d",
			dutyleak.ErrInvalidProgress, p.Done(), p.Total)
	}
	return nil
}

// AdvancesFrom checks that p is a legal successor of prev: bounds hold
// and Completed/Failed never move backwards. Total may be adjusted (a
// handler usually learns the real total only after it starts) as long
// as the bounds still hold.
func (p Progress) AdvancesFrom(prev Progress) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Completed < prev.Completed || p.Failed < prev.Failed {
		return fmt.Errorf("%w: counters went backwards (completed %d->%d failed %d->%d)",
			dutyleak.ErrInvalidProgress, prev.Completed, p.Completed, prev.Failed, p.Failed)
	}
	return nil
}
