// Package socapi is a typed client for the survey platform admin API. Every
// call goes through one transport.Executor and is wrapped by the session's
// auth recovery.
package socapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahmethakanbesel/socpanel/internal/apperror"
	"github.com/ahmethakanbesel/socpanel/internal/config"
	"github.com/ahmethakanbesel/socpanel/internal/session"
	"github.com/ahmethakanbesel/socpanel/internal/transport"
)

const (
	endpointExport         = "api/poll/stat/export"
	endpointExportProgress = endpointExport + "/progress"
	endpointExportDone     = endpointExportProgress + "/done"
	endpointPollList       = "api/poll/list"
	endpointPollGet        = "api/poll/get"
	endpointPollStat       = "api/poll/stat"
	endpointCounterList    = "api/counter/list"

	endpointBlocks           = "api/block/getbypoll"
	endpointQuestionsByPoll  = "api/question/getbypoll"
	endpointQuestionsByBlock = "api/question/getbyblock"
	endpointConversion       = "api/poll/stat/conversion"
	endpointLinks            = "api/poll/source/links"
)

type Client struct {
	exec           *transport.Executor
	sess           *session.Session
	downloadPrefix string
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient replaces the HTTP client built from the config.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

// New builds a client from a resolved config. A token in the config is used
// until the platform rejects it; credentials, when present, allow logging in
// again.
func New(cfg config.Config, opts ...Option) *Client {
	o := clientOptions{httpClient: &http.Client{Timeout: cfg.RequestTimeout}}
	for _, fn := range opts {
		fn(&o)
	}

	exec := transport.New(cfg.BaseURL,
		transport.WithClient(o.httpClient),
		transport.WithMaxConcurrent(cfg.MaxConcurrentRequests),
		transport.WithRetry(cfg.Retries, cfg.RetryInterval),
		transport.WithChunkSize(cfg.ChunkSize),
	)

	var sessOpts []session.Option
	if cfg.Token != "" {
		sessOpts = append(sessOpts, session.WithToken(cfg.Token))
	}
	sess := session.New(exec, session.Credentials{Login: cfg.Login, Password: cfg.Password}, sessOpts...)
	exec.SetHeaderSource(sess.Headers)

	prefix := strings.Trim(cfg.DownloadPrefix, "/")
	if prefix == "" {
		prefix = config.Default().DownloadPrefix
	}

	return &Client{exec: exec, sess: sess, downloadPrefix: prefix}
}

// Login forces a fresh login.
func (c *Client) Login(ctx context.Context) error {
	return c.sess.Login(ctx)
}

// Token returns the current session token, empty before the first login.
func (c *Client) Token() string {
	return c.sess.Token()
}

// call runs req under auth recovery and decodes its result into out when
// out is not nil.
func (c *Client) call(ctx context.Context, req transport.Request, out any) error {
	return c.sess.WithAuth(ctx, func(ctx context.Context) error {
		raw, err := c.exec.Do(ctx, req)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return apperror.Wrap(apperror.Protocol, fmt.Sprintf("decode %s result", req.Name), err)
		}
		return nil
	})
}
