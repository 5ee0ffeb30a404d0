package export

import (
	"context"

	"github.com/ahmethakanbesel/socpanel/internal/socapi"
)

// Platform is the part of the platform API a batch needs.
type Platform interface {
	SubmitExport(ctx context.Context, pollID int, format Format, filter Filter) error
	ExportProgress(ctx context.Context) ([]Record, error)
	DoneExport(ctx context.Context, uuid string) error
	DownloadExport(ctx context.Context, filename, dest string) error
}

// ClientPlatform adapts a socapi.Client to Platform.
type ClientPlatform struct {
	c *socapi.Client
}

func NewClientPlatform(c *socapi.Client) *ClientPlatform {
	return &ClientPlatform{c: c}
}

func (p *ClientPlatform) SubmitExport(ctx context.Context, pollID int, format Format, filter Filter) error {
	return p.c.SubmitExport(ctx, socapi.ExportRequest{
		PollID:   pollID,
		FormatID: format.ID,
		Filter:   filter.Payload(),
	})
}

func (p *ClientPlatform) ExportProgress(ctx context.Context) ([]Record, error) {
	tasks, err := p.c.ExportProgress(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(tasks))
	for _, t := range tasks {
		recs = append(recs, Record{UUID: t.UUID, PollID: t.Params.PollID, Status: Status(t.Status)})
	}
	return recs, nil
}

func (p *ClientPlatform) DoneExport(ctx context.Context, uuid string) error {
	return p.c.DoneExport(ctx, uuid)
}

func (p *ClientPlatform) DownloadExport(ctx context.Context, filename, dest string) error {
	_, err := p.c.DownloadExport(ctx, filename, dest)
	return err
}
