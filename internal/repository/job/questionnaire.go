package job

import (
	"context"
	"fmt"

	domain "github.com/ahmethakanbesel/socpanel/internal/job"
)

func (r *Repository) ListBlocks(ctx context.Context, pollID int) ([]domain.Block, error) {
	const query = `SELECT id, poll_id, name, title, description, ord
		FROM blocks WHERE poll_id = ? ORDER BY ord ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	blocks := []domain.Block{}
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.ID, &b.PollID, &b.Name, &b.Title, &b.Description, &b.Order); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ListQuestions returns the questions of one block when q.BlockID is set,
// otherwise of the whole poll, in questionnaire order with their answers.
func (r *Repository) ListQuestions(ctx context.Context, q domain.QuestionQuery) ([]domain.Question, error) {
	where, arg := "b.poll_id = ?", q.PollID
	if q.BlockID > 0 {
		where, arg = "q.block_id = ?", q.BlockID
	}

	query := `SELECT q.id, q.block_id, q.type_id, q.title, q.ord, q.optional, q.min_answer, q.max_answer, q.has_input
		FROM questions q JOIN blocks b ON b.id = q.block_id
		WHERE ` + where + ` ORDER BY b.ord ASC, q.ord ASC, q.id ASC`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	questions := []domain.Question{}
	index := make(map[int]int)
	for rows.Next() {
		var qu domain.Question
		if err := rows.Scan(&qu.ID, &qu.BlockID, &qu.TypeID, &qu.Title, &qu.Order,
			&qu.Optional, &qu.MinAnswer, &qu.MaxAnswer, &qu.HasInput); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		qu.Answers = []domain.Answer{}
		index[qu.ID] = len(questions)
		questions = append(questions, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}

	answerQuery := `SELECT a.id, a.question_id, a.title, a.ord, a.has_input
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		JOIN blocks b ON b.id = q.block_id
		WHERE ` + where + ` ORDER BY a.question_id ASC, a.ord ASC, a.id ASC`

	arows, err := r.db.QueryContext(ctx, answerQuery, arg)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer func() { _ = arows.Close() }()

	for arows.Next() {
		var a domain.Answer
		if err := arows.Scan(&a.ID, &a.QuestionID, &a.Title, &a.Order, &a.HasInput); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if i, ok := index[a.QuestionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	return questions, arows.Err()
}

// ListConversions returns the interview funnel of every source of the poll.
// Sources without statistics report zeros.
func (r *Repository) ListConversions(ctx context.Context, pollID int) ([]domain.Conversion, error) {
	const query = `SELECT s.id, s.name,
			COALESCE(st.visits, 0), COALESCE(st.completes, 0),
			COALESCE(st.in_progress, 0), COALESCE(st.disqualified, 0)
		FROM sources s LEFT JOIN source_stats st ON st.source_id = s.id
		WHERE s.poll_id = ? ORDER BY s.id ASC`

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.Conversion{}
	for rows.Next() {
		var c domain.Conversion
		if err := rows.Scan(&c.SourceID, &c.SourceName, &c.Visits, &c.Completes, &c.InProgress, &c.Disqualified); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		if c.Visits > 0 {
			c.Rate = float64(c.Completes) / float64(c.Visits)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateLinks stores one link per token in a single transaction.
func (r *Repository) CreateLinks(ctx context.Context, pollID int, tokens []string) ([]domain.Link, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	links := make([]domain.Link, 0, len(tokens))
	for _, token := range tokens {
		res, err := tx.ExecContext(ctx, `INSERT INTO links (poll_id, token) VALUES (?, ?)`, pollID, token)
		if err != nil {
			return nil, fmt.Errorf("create link: %w", err)
		}
		id, _ := res.LastInsertId()
		links = append(links, domain.Link{ID: int(id), PollID: pollID, Token: token})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return links, nil
}
