package socapi

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

const defaultSearchChunk = 50

// SearchQuery selects polls by name or by number. Exactly one of Name and
// Number should be set.
type SearchQuery struct {
	Name      string
	Number    int
	InTrack   bool
	ChunkSize int
}

type PollSummary struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type Source struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type PollMeta struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	StatusID int      `json:"status_id"`
	Sources  []Source `json:"sources"`
}

// QuotaLine is a quota counter joined with its source names.
type QuotaLine struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Hits    int      `json:"hits"`
	Quota   int      `json:"quota"`
	Left    int      `json:"left"`
	Sources []string `json:"sources"`
}

type counter struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Hits      int    `json:"hits"`
	Quota     int    `json:"quota"`
	SourceIDs []int  `json:"source_ids"`
}

// PollStat is the part of the poll statistics the client uses.
type PollStat struct {
	EndedCount int `json:"ended_count"`
}

// Search pages through api/poll/list. Each page asks for one entry more than
// the chunk so a short page marks the end.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]PollSummary, error) {
	if q.Name == "" && q.Number <= 0 {
		return nil, fmt.Errorf("search needs a name or a poll number")
	}
	chunk := q.ChunkSize
	if chunk <= 0 {
		chunk = defaultSearchChunk
	}

	var out []PollSummary
	seen := make(map[int]bool)
	for page := 0; ; page++ {
		payload := map[string]any{
			"is_in_track": q.InTrack,
			"limit":       chunk + 1,
			"offset":      chunk * page,
		}
		if q.Name != "" {
			payload["name"] = q.Name
		} else {
			payload["num"] = q.Number
		}

		var polls []PollSummary
		if err := c.call(ctx, transport.Request{
			Name:          "Search",
			Endpoint:      endpointPollList,
			Payload:       payload,
			ExtractResult: true,
		}, &polls); err != nil {
			return nil, err
		}

		for _, p := range polls {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
		if len(polls) <= chunk {
			return out, nil
		}
	}
}

func (c *Client) Metadata(ctx context.Context, pollID int) (*PollMeta, error) {
	var meta PollMeta
	err := c.call(ctx, transport.Request{
		Name:          "Get metadata",
		Endpoint:      endpointPollGet,
		Payload:       map[string]int{"id": pollID},
		ExtractResult: true,
	}, &meta)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// Quota fetches the poll's counters and its sources concurrently and joins
// them.
func (c *Client) Quota(ctx context.Context, pollID int) ([]QuotaLine, error) {
	var (
		counters []counter
		meta     *PollMeta
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
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return joinQuota(counters, meta.Sources), nil
}

func (c *Client) counters(ctx context.Context, pollID int) ([]counter, error) {
	var counters []counter
	err := c.call(ctx, transport.Request{
		Name:          "List quota",
		Endpoint:      endpointCounterList,
		Payload:       map[string]int{"poll_id": pollID},
		ExtractResult: true,
	}, &counters)
	return counters, err
}

// joinQuota resolves counter source ids to names. Unknown ids are shown as
// "#<id>".
func joinQuota(counters []counter, sources []Source) []QuotaLine {
	labels := make(map[int]string, len(sources))
	for _, s := range sources {
		labels[s.ID] = s.Name
	}

	lines := make([]QuotaLine, 0, len(counters))
	for _, q := range counters {
		names := make([]string, 0, len(q.SourceIDs))
		for _, id := range q.SourceIDs {
			name, ok := labels[id]
			if !ok {
				name = "#" + strconv.Itoa(id)
			}
			names = append(names, name)
		}
		lines = append(lines, QuotaLine{
			ID:      q.ID,
			Name:    q.Name,
			Hits:    q.Hits,
			Quota:   q.Quota,
			Left:    q.Quota - q.Hits,
			Sources: names,
		})
	}
	return lines
}

func (c *Client) Stat(ctx context.Context, pollID int) (*PollStat, error) {
	var stat PollStat
	err := c.call(ctx, transport.Request{
		Name:     "Poll statistic",
		Endpoint: endpointPollStat,
		Payload: map[string]any{
			"id":                  pollID,
			"domain_ids":          []int{1},
			"is_poll_complete":    true,
			"is_poll_in_progress": true,
		},
		ExtractResult: true,
	}, &stat)
	if err != nil {
		return nil, err
	}
	return &stat, nil
}

// HasCompletes reports whether the poll has at least one finished interview.
func (c *Client) HasCompletes(ctx context.Context, pollID int) (bool, error) {
	stat, err := c.Stat(ctx, pollID)
	if err != nil {
		return false, err
	}
	return stat.EndedCount > 0, nil
}
