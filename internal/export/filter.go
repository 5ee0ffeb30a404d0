package export

import (
	"fmt"
	"time"
)

// FilterTimeLayout is the layout accepted for export interval bounds on the
// command line.
const FilterTimeLayout = "2006-01-02_15:04:05"

// QuestionFilter restricts respondents to those who gave one of AnswerIDs
// on QuestionID.
type QuestionFilter struct {
	QuestionID int   `json:"question_id"`
	AnswerIDs  []int `json:"answer_ids"`
}

// Filter selects the respondents included in an export. It is shared by all
// polls of a batch and is not modified after the batch starts.
type Filter struct {
	Complete     bool
	InProgress   bool
	Disqualified bool
	From         *time.Time
	To           *time.Time
	DomainIDs    []int
	Questions    []QuestionFilter
}

// DefaultFilter includes completed and in-progress interviews.
func DefaultFilter() Filter {
	return Filter{Complete: true, InProgress: true}
}

// Payload renders the filter in wire form. Bounds are sent in UTC with a Z
// suffix and omitted when unset.
func (f Filter) Payload() map[string]any {
	domains := f.DomainIDs
	if len(domains) == 0 {
		domains = []int{1}
	}
	p := map[string]any{
		"domain_ids":          domains,
		"is_poll_complete":    f.Complete,
		"is_poll_in_progress": f.InProgress,
	}
	if f.Disqualified {
		p["is_disqualified"] = true
	}
	if f.From != nil {
		p["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		p["to"] = f.To.UTC().Format(time.RFC3339)
	}
	if len(f.Questions) > 0 {
		p["questions"] = f.Questions
	}
	return p
}

// Validate rejects inverted intervals.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return fmt.Errorf("export interval starts after it ends")
	}
	return nil
}

// ParseFilterTime parses a bound in FilterTimeLayout, interpreted in loc
// (UTC when nil). An empty string yields nil.
func ParseFilterTime(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(FilterTimeLayout, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q, expected %s: %w", s, FilterTimeLayout, err)
	}
	return &t, nil
}
