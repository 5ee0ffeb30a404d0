package job

import (
	"strings"
	"time"
)

type Status string

const (
	StatusQueued       Status = "queued"
	StatusInProgress   Status = "in_progress"
	StatusDone         Status = "done"
	StatusError        Status = "error"
	StatusAcknowledged Status = "acknowledged"
)

// Public returns the status as clients of the progress list see it. Queued
// jobs are reported as in progress.
func (s Status) Public() string {
	if s == StatusQueued {
		return string(StatusInProgress)
	}
	return string(s)
}

var formatExts = map[int]string{
	1: "xlsx",
	2: "sav",
}

// FormatExt returns the file extension for a format id, or "" when unknown.
func FormatExt(formatID int) string {
	return formatExts[formatID]
}

// Job is one export requested by a client.
type Job struct {
	ID        int64     `json:"id"`
	UUID      string    `json:"uuid"`
	PollID    int       `json:"pollId"`
	FormatID  int       `json:"formatId"`
	Filter    string    `json:"filter"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Filename is the name under which the materialized export is served.
func (j *Job) Filename() string {
	return j.UUID + "." + FormatExt(j.FormatID)
}

// ParseFilename splits "<uuid>.<ext>" into its parts.
func ParseFilename(name string) (uuid, ext string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}
