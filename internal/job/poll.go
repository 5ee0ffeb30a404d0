package job

import "time"

// Poll is a survey hosted by the mock platform.
type Poll struct {
	ID         int       `json:"id"`
	Num        int       `json:"num"`
	Name       string    `json:"name"`
	StatusID   int       `json:"status_id"`
	InTrack    bool      `json:"is_in_track"`
	EndedCount int       `json:"ended_count"`
	CreatedAt  time.Time `json:"created_at"`
	Sources    []Source  `json:"sources"`
}

type Source struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Counter is a quota cell of a poll.
type Counter struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Hits      int    `json:"hits"`
	Quota     int    `json:"quota"`
	SourceIDs []int  `json:"source_ids"`
}

// PollQuery selects polls by name substring or by number, one page at a
// time.
type PollQuery struct {
	Name    string
	Num     int
	InTrack bool
	Limit   int
	Offset  int
}

// Block groups the questions of a poll. Order is 1-based.
type Block struct {
	ID          int    `json:"id"`
	PollID      int    `json:"poll_id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// Question type ids used by the platform.
const (
	QuestionSinglePunch = 1
	QuestionDropList    = 2
	QuestionOneInRow    = 3
	QuestionMultiPunch  = 4
	QuestionOpenEnded   = 7
	QuestionOrdered     = 8
	QuestionSlider      = 9
	QuestionMultInRow   = 10
	QuestionInfoScreen  = 11
)

type Question struct {
	ID        int      `json:"id"`
	BlockID   int      `json:"block_id"`
	TypeID    int      `json:"type_id"`
	Title     string   `json:"title"`
	Order     int      `json:"order"`
	Optional  bool     `json:"optional"`
	MinAnswer int      `json:"min_answer"`
	MaxAnswer int      `json:"max_answer"`
	HasInput  bool     `json:"has_input"`
	Answers   []Answer `json:"answers"`
}

// Answer is an option of a question. HasInput marks options that carry a
// free text field, such as "Other (specify)".
type Answer struct {
	ID         int    `json:"id"`
	QuestionID int    `json:"question_id"`
	Title      string `json:"title"`
	Order      int    `json:"order"`
	HasInput   bool   `json:"has_input"`
}

// QuestionQuery selects the questions of a poll or of one block.
type QuestionQuery struct {
	PollID  int
	BlockID int
}

// Conversion is the interview funnel of one source.
type Conversion struct {
	SourceID     int     `json:"source_id"`
	SourceName   string  `json:"source_name"`
	Visits       int     `json:"visits"`
	Completes    int     `json:"completes"`
	InProgress   int     `json:"in_progress"`
	Disqualified int     `json:"disqualified"`
	Rate         float64 `json:"conversion"`
}

// Link is a respondent link generated for a poll.
type Link struct {
	ID     int    `json:"id"`
	PollID int    `json:"poll_id"`
	Token  string `json:"token"`
	URL    string `json:"url"`
}
