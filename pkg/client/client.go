package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/security"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	welcomePath = "/welcome"
	chatPath    = "/chat"

	// replies larger than this are treated as malformed
	maxReplyBytes = 4 << 20
	// error bodies without a detail field are quoted up to this many bytes
	maxDetailBytes = 200
)

// ChatRequest is the body of POST /chat: the full transcript, oldest first.
type ChatRequest struct {
	Messages []conversation.Message `json:"messages"`
}

type errorResponse struct {
	Detail interface{} `json:"detail"`
}

// wireMessage uses pointers so missing fields can be told apart from empty ones.
// id and createTime are optional and decoded leniently, a bad value only loses that field.
type wireMessage struct {
	ID         json.RawMessage    `json:"id"`
	Role       *conversation.Role `json:"role"`
	Content    *string            `json:"content"`
	CreateTime json.RawMessage    `json:"createTime"`
}

// Client talks to the chat service.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	userAgent  string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// NewClient validates the configured base address and returns a client for it.
// Timeouts are not set on the HTTP client; callers bound each call with its context.
func NewClient(s *settings.ClientSettings, options ...Option) (*Client, error) {
	baseURL, err := security.ValidateServiceURL(s.BaseURL, security.ServiceURLOptions{
		AllowHTTP:          s.AllowHTTP,
		AllowLocalNetworks: s.AllowLocalNetworks,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid chat service URL %q", s.BaseURL)
	}

	ret := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		userAgent:  s.UserAgent,
	}
	for _, option := range options {
		option(ret)
	}

	return ret, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	return u.String()
}

// Welcome fetches the assistant-authored greeting.
func (c *Client) Welcome(ctx context.Context) (conversation.Message, error) {
	return c.do(ctx, "welcome", http.MethodGet, c.endpoint(welcomePath), nil)
}

// Chat sends the transcript and returns the service's reply.
func (c *Client) Chat(ctx context.Context, messages []conversation.Message) (conversation.Message, error) {
	if messages == nil {
		messages = []conversation.Message{}
	}
	body, err := json.Marshal(ChatRequest{Messages: messages})
	if err != nil {
		return conversation.Message{}, errors.Wrap(err, "could not encode chat request")
	}
	return c.do(ctx, "chat", http.MethodPost, c.endpoint(chatPath), body)
}

func (c *Client) do(ctx context.Context, op string, method string, endpoint string, body []byte) (conversation.Message, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return conversation.Message{}, errors.Wrapf(err, "could not build %s request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("url", endpoint).
		Int("body_bytes", len(body)).
		Msg("sending request to chat service")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return conversation.Message{}, &TransportError{Op: op, URL: endpoint, Err: err}
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes+1))
	if err != nil {
		return conversation.Message{}, &TransportError{Op: op, URL: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return conversation.Message{}, &RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     parseDetail(respBody),
		}
	}

	if len(respBody) > maxReplyBytes {
		return conversation.Message{}, &MalformedReplyError{Op: op, Reason: "reply body too large"}
	}

	return decodeMessage(op, respBody)
}

func decodeMessage(op string, body []byte) (conversation.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(body, &w); err != nil {
		return conversation.Message{}, &MalformedReplyError{Op: op, Reason: "body is not a message object", Err: err}
	}
	if w.Role == nil {
		return conversation.Message{}, &MalformedReplyError{Op: op, Reason: "missing role"}
	}
	if w.Content == nil {
		return conversation.Message{}, &MalformedReplyError{Op: op, Reason: "missing content"}
	}

	if !w.Role.IsKnown() {
		log.Debug().Str("op", op).Str("role", string(*w.Role)).Msg("reply has an unknown role")
	}

	return conversation.Message{
		ID:         decodeID(w.ID),
		Role:       *w.Role,
		Content:    *w.Content,
		CreateTime: decodeCreateTime(w.CreateTime),
	}, nil
}

// decodeID accepts a string or a number, anything else yields "".
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeCreateTime accepts integer or fractional milliseconds, as a number or a numeric string.
// Anything else yields 0, which renders as an unknown time.
func decodeCreateTime(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int64(f)
	}
	return 0
}

// parseDetail extracts the service's error description: a JSON "detail" field if present,
// otherwise the trimmed body text.
func parseDetail(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != nil {
		switch d := e.Detail.(type) {
		case string:
			return d
		default:
			b, err := json.Marshal(d)
			if err == nil {
				return string(b)
			}
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > maxDetailBytes {
		cut := maxDetailBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
