package main

import (
	"errors"
	"testing"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/export"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"10", " 11"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
		t.Errorf("unexpected ids %v", ids)
	}

	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := parseIDs([]string{bad}); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestParseQuestion(t *testing.T) {
	q, err := parseQuestion("12=3,4")
	if err != nil {
		t.Fatal(err)
	}
	if q.QuestionID != 12 || len(q.AnswerIDs) != 2 || q.AnswerIDs[1] != 4 {
		t.Errorf("unexpected filter %+v", q)
	}

	for _, bad := range []string{"12", "x=1", "12=", "12=a"} {
		if _, err := parseQuestion(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestFilterFlags_Build(t *testing.T) {
	ff := filterFlags{
		complete:  true,
		from:      "2024-03-01_09:30:00",
		to:        "2024-03-02_00:00:00",
		tz:        "UTC",
		questions: []string{"5=1"},
	}
	f, err := ff.build()
	if err != nil {
		t.Fatal(err)
	}
	if !f.Complete || f.InProgress {
		t.Errorf("unexpected flags %+v", f)
	}
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	if f.From == nil || !f.From.Equal(want) {
		t.Errorf("expected from %v, got %v", want, f.From)
	}
	if len(f.Questions) != 1 || f.Questions[0].QuestionID != 5 {
		t.Errorf("unexpected questions %+v", f.Questions)
	}

	ff.from, ff.to = ff.to, ff.from
	if _, err := ff.build(); err == nil {
		t.Error("expected inverted interval to be rejected")
	}

	ff = filterFlags{tz: "Nowhere/City"}
	if _, err := ff.build(); err == nil {
		t.Error("expected unknown time zone to be rejected")
	}
}

func TestSummaryRows(t *testing.T) {
	sum := &export.Summary{
		Downloaded: map[int]string{10: "out/poll_10.sav"},
		Failed:     map[int]error{11: errors.New("boom")},
	}
	rows := summaryRows([]int{11, 10}, sum)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].PollID != 10 || rows[0].Path != "out/poll_10.sav" || rows[0].Error != "" {
		t.Errorf("unexpected row %+v", rows[0])
	}
	if rows[1].PollID != 11 || rows[1].Error != "boom" {
		t.Errorf("unexpected row %+v", rows[1])
	}

	if got := summaryRows([]int{1}, nil); len(got) != 0 {
		t.Errorf("expected no rows without a summary, got %+v", got)
	}
}

func TestBlankZero(t *testing.T) {
	if blankZero(0) != "" || blankZero(405) != 405 {
		t.Error("expected zero ids rendered blank")
	}
}
