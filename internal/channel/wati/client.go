// Package wati is the WATI (WhatsApp Team Inbox) implementation of
// channel.Gateway.
package wati

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/httpretry"
	"github.com/zntrlhub/engage/internal/pkg/logger"
)

const (
	// TemplatePageSize is the page size used when listing templates.
	TemplatePageSize = 500

	defaultSendTimeout  = 90 * time.Second
	defaultReadTimeout  = 30 * time.Second
	defaultProbeTimeout = 10 * time.Second
)

// APIError is a non-2xx response from WATI.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wati %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return channel.ErrGatewayError }

// Client talks to a tenant's WATI endpoint. Credentials are supplied per
// call since one client serves every account.
type Client struct {
	send  httpretry.HTTPDoer
	read  httpretry.HTTPDoer
	probe httpretry.HTTPDoer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces every underlying transport. Reads are still
// wrapped in retry logic.
func WithHTTPClient(c httpretry.HTTPDoer, readRetries int, retryOpts ...httpretry.Option) Option {
	return func(cl *Client) {
		cl.send = c
		cl.probe = c
		cl.read = httpretry.NewRetryClient(c, readRetries, retryOpts...)
	}
}

// WithReadRetries sets how often idempotent reads are retried.
func WithReadRetries(n int) Option {
	return func(cl *Client) {
		cl.read = httpretry.NewRetryClient(&http.Client{Timeout: defaultReadTimeout}, n)
	}
}

// NewClient builds a client with sensible per-call timeouts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		send:  &http.Client{Timeout: defaultSendTimeout},
		read:  httpretry.NewRetryClient(&http.Client{Timeout: defaultReadTimeout}, 3),
		probe: &http.Client{Timeout: defaultProbeTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ channel.Gateway = (*Client)(nil)

type sendTemplateRequest struct {
	TemplateName  string              `json:"template_name"`
	BroadcastName string              `json:"broadcast_name"`
	Receivers     []channel.Recipient `json:"receivers"`
}

type getMessagesResponse struct {
	Messages struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	} `json:"messages"`
}

type getTemplatesResponse struct {
	MessageTemplates []json.RawMessage `json:"messageTemplates"`
}

// Send posts the broadcast once, then looks up the newest message for each
// recipient to learn its channel id. Lookup failures after a successful
// send are logged and that recipient is left without a Delivery; the
// message already went out and must not be resent.
func (c *Client) Send(ctx context.Context, creds domain.ChannelCredentials, req channel.SendRequest) ([]channel.Delivery, error) {
	body, err := json.Marshal(sendTemplateRequest{
		TemplateName:  req.TemplateName,
		BroadcastName: req.BroadcastName,
		Receivers:     req.Recipients,
	})
	if err != nil {
		return nil, fmt.Errorf("encode send request: %w", err)
	}

	if _, err := c.do(ctx, c.send, creds, http.MethodPost, "/api/v1/sendTemplateMessages", nil, body); err != nil {
		return nil, err
	}

	deliveries := make([]channel.Delivery, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		id, err := c.latestMessageID(ctx, creds, r.WhatsAppNumber)
		if err != nil {
			logger.Warn("wati: message id lookup failed", "whatsapp_number", r.WhatsAppNumber, "error", err)
			continue
		}
		deliveries = append(deliveries, channel.Delivery{WhatsAppNumber: r.WhatsAppNumber, ExternalID: id})
	}
	return deliveries, nil
}

func (c *Client) latestMessageID(ctx context.Context, creds domain.ChannelCredentials, number string) (string, error) {
	q := url.Values{"pageSize": {"1"}, "pageNumber": {"1"}}
	raw, err := c.do(ctx, c.read, creds, http.MethodGet, "/api/v1/getMessages/"+url.PathEscape(number), q, nil)
	if err != nil {
		return "", err
	}
	var resp getMessagesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode getMessages: %v", channel.ErrGatewayError, err)
	}
	if len(resp.Messages.Items) == 0 || resp.Messages.Items[0].ID == "" {
		return "", fmt.Errorf("%w: no messages for recipient", channel.ErrGatewayError)
	}
	return resp.Messages.Items[0].ID, nil
}

// Templates fetches one page (1-based) of message templates.
func (c *Client) Templates(ctx context.Context, creds domain.ChannelCredentials, page int) ([]domain.Template, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{
		"pageSize":   {fmt.Sprint(TemplatePageSize)},
		"pageNumber": {fmt.Sprint(page)},
	}
	raw, err := c.do(ctx, c.read, creds, http.MethodGet, "/api/v1/getMessageTemplates", q, nil)
	if err != nil {
		return nil, err
	}
	var resp getTemplatesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode templates: %v", channel.ErrGatewayError, err)
	}

	out := make([]domain.Template, 0, len(resp.MessageTemplates))
	for _, t := range resp.MessageTemplates {
		var meta struct {
			ElementName string `json:"elementName"`
			Name        string `json:"name"`
		}
		if err := json.Unmarshal(t, &meta); err != nil {
			logger.Warn("wati: skipping undecodable template", "account_id", creds.AccountID, "page", page, "error", err)
			continue
		}
		name := meta.ElementName
		if name == "" {
			name = meta.Name
		}
		if name == "" {
			logger.Warn("wati: skipping template without a name", "account_id", creds.AccountID, "page", page)
			continue
		}
		out = append(out, domain.Template{AccountID: creds.AccountID, Name: name, Raw: t})
	}
	return out, nil
}

// Probe calls getContacts with a short timeout.
func (c *Client) Probe(ctx context.Context, creds domain.ChannelCredentials) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()
	_, err := c.do(ctx, c.probe, creds, http.MethodGet, "/api/v1/getContacts", nil, nil)
	if err != nil {
		logger.Info("wati: connectivity probe failed", "account_id", creds.AccountID, "error", err)
		return false
	}
	return true
}

func (c *Client) do(ctx context.Context, doer httpretry.HTTPDoer, creds domain.ChannelCredentials, method, path string, q url.Values, body []byte) ([]byte, error) {
	if creds.Endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", channel.ErrGatewayUnavailable)
	}
	u := strings.TrimRight(creds.Endpoint, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", channel.ErrGatewayError, err)
	}
	req.Header.Set("Authorization", creds.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", channel.ErrGatewayError, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", channel.ErrGatewayError, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Path: path, Body: truncate(string(raw), 512)}
	}
	return raw, nil
}

// truncate cuts s to n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
