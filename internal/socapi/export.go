package socapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

// ExportRequest is the body of an export submission. Filter is rendered as
// given.
type ExportRequest struct {
	PollID   int            `json:"poll_id"`
	FormatID int            `json:"format_id"`
	Filter   map[string]any `json:"filter"`
}

// ExportTask is one entry of the platform's export progress list.
type ExportTask struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
	Params struct {
		PollID int `json:"poll_id"`
	} `json:"params"`
}

// SubmitExport asks the platform to start materializing an export. The
// platform does not answer with an identifier; the export shows up in
// ExportProgress.
func (c *Client) SubmitExport(ctx context.Context, req ExportRequest) error {
	return c.call(ctx, transport.Request{
		Name:     "Export",
		Endpoint: endpointExport,
		Payload:  req,
	}, nil)
}

// ExportProgress lists every export the platform currently tracks for the
// account.
func (c *Client) ExportProgress(ctx context.Context) ([]ExportTask, error) {
	var tasks []ExportTask
	err := c.call(ctx, transport.Request{
		Name:          "Progress",
		Endpoint:      endpointExportProgress,
		ExtractResult: true,
	}, &tasks)
	return tasks, err
}

// DoneExport acknowledges an export so the platform drops it from the
// progress list.
func (c *Client) DoneExport(ctx context.Context, uuid string) error {
	return c.call(ctx, transport.Request{
		Name:     "Done",
		Endpoint: endpointExportDone,
		Payload:  map[string]string{"uuid": uuid},
	}, nil)
}

// DownloadExport streams a materialized export file to dest. The body is
// written to dest + ".part" and renamed once complete, so dest never holds a
// partial file.
func (c *Client) DownloadExport(ctx context.Context, filename, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	part := dest + ".part"

	var n int64
	err := c.sess.WithAuth(ctx, func(ctx context.Context) error {
		f, err := os.Create(part)
		if err != nil {
			return fmt.Errorf("create %s: %w", part, err)
		}
		n, err = c.exec.Stream(ctx, transport.Request{
			Name:     "Download",
			Method:   http.MethodGet,
			Endpoint: c.downloadPrefix + "/" + filename,
		}, f)
		return errors.Join(err, f.Close())
	})
	if err != nil {
		_ = os.Remove(part)
		return 0, err
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("move download into place: %w", err)
	}
	return n, nil
}
