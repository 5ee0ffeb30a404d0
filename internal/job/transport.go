package job

import (
	"encoding/json"
	"strings"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

type SubmitExportRequest struct {
	PollID   int             `json:"poll_id"`
	FormatID int             `json:"format_id"`
	Filter   json.RawMessage `json:"filter"`
}

func (r SubmitExportRequest) Validate() *apperror.AppError {
	if r.PollID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid poll_id")
	}
	if FormatExt(r.FormatID) == "" {
		return apperror.New(apperror.BadRequest, "invalid format_id")
	}
	if len(r.Filter) > 0 && !json.Valid(r.Filter) {
		return apperror.New(apperror.BadRequest, "invalid filter")
	}
	return nil
}

type AcknowledgeRequest struct {
	UUID string `json:"uuid"`
}

func (r AcknowledgeRequest) Validate() *apperror.AppError {
	if strings.TrimSpace(r.UUID) == "" {
		return apperror.New(apperror.BadRequest, "uuid is required")
	}
	return nil
}

type SearchPollsRequest struct {
	Name    string `json:"name"`
	Num     int    `json:"num"`
	InTrack bool   `json:"is_in_track"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (r SearchPollsRequest) Validate() *apperror.AppError {
	if r.Name == "" && r.Num <= 0 {
		return apperror.New(apperror.BadRequest, "name or num is required")
	}
	if r.Limit < 0 || r.Offset < 0 {
		return apperror.New(apperror.BadRequest, "limit and offset must not be negative")
	}
	return nil
}

// PollRequest identifies a poll. The platform names the field "id" on some
// endpoints and "poll_id" on others; both are accepted.
type PollRequest struct {
	ID     int `json:"id"`
	PollID int `json:"poll_id"`
}

func (r PollRequest) Poll() int {
	if r.ID > 0 {
		return r.ID
	}
	return r.PollID
}

func (r PollRequest) Validate() *apperror.AppError {
	if r.Poll() <= 0 {
		return apperror.New(apperror.BadRequest, "invalid poll id")
	}
	return nil
}

// QuestionsRequest selects questions by poll or by block. Includes names the
// fields the caller wants; every field is always returned.
type QuestionsRequest struct {
	PollID   int      `json:"poll_id"`
	BlockID  int      `json:"block_id"`
	Includes []string `json:"includes"`
}

func (r QuestionsRequest) Validate() *apperror.AppError {
	if (r.PollID > 0) == (r.BlockID > 0) {
		return apperror.New(apperror.BadRequest, "exactly one of poll_id and block_id is required")
	}
	return nil
}

const maxLinksPerRequest = 1000

type CreateLinksRequest struct {
	PollID    int `json:"poll_id"`
	LinkCount int `json:"link_count"`
}

func (r CreateLinksRequest) Validate() *apperror.AppError {
	if r.PollID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid poll_id")
	}
	if r.LinkCount < 0 || r.LinkCount > maxLinksPerRequest {
		return apperror.New(apperror.BadRequest, "link_count must be between 1 and 1000")
	}
	return nil
}
