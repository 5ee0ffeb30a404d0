package socapi

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

var (
	blockIncludes    = []string{"id", "name", "title", "description", "poll_id", "order"}
	questionIncludes = []string{
		"type_id", "answers", "id", "title", "block_id", "order", "optional",
		"max_answer", "min_answer", "has_input", "children", "children.type_id", "children.answers",
	}
)

// Question type ids.
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

type Block struct {
	ID          int    `json:"id"`
	PollID      int    `json:"poll_id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

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

type Answer struct {
	ID         int    `json:"id"`
	QuestionID int    `json:"question_id"`
	Title      string `json:"title"`
	Order      int    `json:"order"`
	HasInput   bool   `json:"has_input"`
}

// ColumnKind tells what a data file column holds.
type ColumnKind int

const (
	ColumnData ColumnKind = iota
	ColumnInput
	ColumnTech
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnData:
		return "data"
	case ColumnInput:
		return "input"
	case ColumnTech:
		return "tech"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Column is one column of a poll's data file. Tech columns carry only a
// Name; AnswerID is zero for columns that belong to the whole question.
type Column struct {
	Name       string     `json:"name,omitempty"`
	QuestionID int        `json:"question_id,omitempty"`
	AnswerID   int        `json:"answer_id,omitempty"`
	Kind       ColumnKind `json:"kind"`
}

// Key is a stable column label such as "q302_405_input".
func (c Column) Key() string {
	if c.Kind == ColumnTech {
		return c.Name
	}
	var b strings.Builder
	b.WriteString("q" + strconv.Itoa(c.QuestionID))
	if c.AnswerID != 0 {
		b.WriteString("_" + strconv.Itoa(c.AnswerID))
	}
	if c.Kind == ColumnInput {
		b.WriteString("_input")
	}
	return b.String()
}

// techColumns lead every data file.
var techColumns = []string{
	"CollectorNM", "respondent_id", "collector_id", "date_created",
	"date_modified", "survey_time", "ip_address",
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

// TargetQuota is a quota line with its source names joined for reports.
type TargetQuota struct {
	QuotaID      int    `json:"quota_id"`
	QuotaName    string `json:"quota_name"`
	SourcesNames string `json:"sources_names"`
	Hits         int    `json:"hits"`
	Quota        int    `json:"quota"`
	Left         int    `json:"left"`
}

// Target summarizes a poll's fieldwork: quota fill and source conversion.
type Target struct {
	Name        string        `json:"name"`
	StatusID    int           `json:"status_id"`
	Quotas      []TargetQuota `json:"quotas"`
	Conversions []Conversion  `json:"conversions"`
}

type Link struct {
	ID     int    `json:"id"`
	PollID int    `json:"poll_id"`
	Token  string `json:"token"`
	URL    string `json:"url"`
}

func (c *Client) Blocks(ctx context.Context, pollID int) ([]Block, error) {
	var blocks []Block
	err := c.call(ctx, transport.Request{
		Name:          "Blocks in poll",
		Endpoint:      endpointBlocks,
		Payload:       map[string]any{"poll_id": pollID, "includes": blockIncludes},
		ExtractResult: true,
	}, &blocks)
	return blocks, err
}

func (c *Client) QuestionsByPoll(ctx context.Context, pollID int) ([]Question, error) {
	return c.questions(ctx, endpointQuestionsByPoll, "poll_id", pollID)
}

func (c *Client) QuestionsByBlock(ctx context.Context, blockID int) ([]Question, error) {
	return c.questions(ctx, endpointQuestionsByBlock, "block_id", blockID)
}

func (c *Client) questions(ctx context.Context, endpoint, key string, id int) ([]Question, error) {
	var qs []Question
	err := c.call(ctx, transport.Request{
		Name:          "Get questions",
		Endpoint:      endpoint,
		Payload:       map[string]any{key: id, "includes": questionIncludes},
		ExtractResult: true,
	}, &qs)
	return qs, err
}

// MapColumns lays out the columns of the poll's data file: the tech columns
// first, then every question of every block in block order. Block questions
// are fetched concurrently.
func (c *Client) MapColumns(ctx context.Context, pollID int) ([]Column, error) {
	blocks, err := c.Blocks(ctx, pollID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(blocks, func(a, b Block) int { return a.Order - b.Order })

	perBlock := make([][]Question, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range blocks {
		g.Go(func() error {
			qs, err := c.QuestionsByBlock(gctx, b.ID)
			if err != nil {
				return fmt.Errorf("block %d: %w", b.ID, err)
			}
			perBlock[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Columns(perBlock), nil
}

// Columns maps ordered block questions to data file columns. Multipunch and
// row questions get one column per answer; open-ended questions get a single
// input column; any other question gets one column. Answers with a text
// field add an input column after the question's own columns.
func Columns(blocks [][]Question) []Column {
	cols := make([]Column, 0, len(techColumns))
	for _, name := range techColumns {
		cols = append(cols, Column{Name: name, Kind: ColumnTech})
	}

	for _, qs := range blocks {
		for _, q := range qs {
			var inputs []Column
			for _, a := range q.Answers {
				if a.HasInput {
					inputs = append(inputs, Column{QuestionID: q.ID, AnswerID: a.ID, Kind: ColumnInput})
				}
			}

			switch q.TypeID {
			case QuestionMultiPunch, QuestionOneInRow, QuestionMultInRow:
				for _, a := range q.Answers {
					cols = append(cols, Column{QuestionID: q.ID, AnswerID: a.ID, Kind: ColumnData})
				}
			case QuestionOpenEnded:
				cols = append(cols, Column{QuestionID: q.ID, Kind: ColumnInput})
				continue
			default:
				cols = append(cols, Column{QuestionID: q.ID, Kind: ColumnData})
			}
			cols = append(cols, inputs...)
		}
	}
	return cols
}

// Conversions fetches the funnel of every source, counting complete,
// in-progress and disqualified interviews.
func (c *Client) Conversions(ctx context.Context, pollID int) ([]Conversion, error) {
	var convs []Conversion
	err := c.call(ctx, transport.Request{
		Name:     "Get conversions",
		Endpoint: endpointConversion,
		Payload: map[string]any{
			"id":                  pollID,
			"domain_ids":          []int{1},
			"is_poll_complete":    true,
			"is_poll_in_progress": true,
			"is_disqualified":     true,
		},
		ExtractResult: true,
	}, &convs)
	return convs, err
}

// Target fetches quota counters, metadata and conversions concurrently and
// combines them.
func (c *Client) Target(ctx context.Context, pollID int) (*Target, error) {
	var (
		counters []counter
		meta     *PollMeta
		convs    []Conversion
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counters, err = c.counters(gctx, pollID)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = c.Metadata(gctx, pollID)
		return err
	})
	g.Go(func() error {
		var err error
		convs, err = c.Conversions(gctx, pollID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := joinQuota(counters, meta.Sources)
	quotas := make([]TargetQuota, 0, len(lines))
	for _, l := range lines {
		quotas = append(quotas, TargetQuota{
			QuotaID:      l.ID,
			QuotaName:    l.Name,
			SourcesNames: strings.Join(l.Sources, ", "),
			Hits:         l.Hits,
			Quota:        l.Quota,
			Left:         l.Left,
		})
	}
	return &Target{Name: meta.Name, StatusID: meta.StatusID, Quotas: quotas, Conversions: convs}, nil
}

// CreateLinks generates count respondent links for the poll. A count below
// one creates a single link.
func (c *Client) CreateLinks(ctx context.Context, pollID, count int) ([]Link, error) {
	var links []Link
	err := c.call(ctx, transport.Request{
		Name:          "Generating links",
		Endpoint:      endpointLinks,
		Payload:       map[string]int{"poll_id": pollID, "link_count": max(count, 1)},
		ExtractResult: true,
	}, &links)
	return links, err
}
