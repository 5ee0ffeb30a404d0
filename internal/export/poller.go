package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
)

// Poller watches the platform's export progress list and fires readiness
// signals in the registry.
type Poller struct {
	platform Platform
	registry *Registry
	interval time.Duration
}

func NewPoller(p Platform, r *Registry, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{platform: p, registry: r, interval: interval}
}

// Run polls until ctx is cancelled. Failed polls are logged and retried on
// the next tick. Cancellation is not an error.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.poll(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	recs, err := p.platform.ExportProgress(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("poller: export progress", "error", err)
		return
	}

	for _, rec := range recs {
		if !p.registry.Observe(rec) {
			continue
		}
		known, _ := p.registry.Lookup(rec.PollID)
		if known.UUID != rec.UUID {
			continue
		}

		switch rec.Status {
		case StatusDone:
			p.registry.Resolve(rec.PollID)
		case StatusError:
			p.registry.Fail(rec.PollID, apperror.New(apperror.ExportFailed,
				fmt.Sprintf("platform failed to export poll %d (uuid %s)", rec.PollID, rec.UUID)))
			p.registry.Resolve(rec.PollID)
		}
	}
}
