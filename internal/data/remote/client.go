package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/core/model"
	"github.com/penwyp/go-ici-sync/internal/util"
	"github.com/tidwall/gjson"
)

const envBoxEndpoint = "/env-box"

// Client talks to the shared-log service. The service only offers whole
// snapshot reads and replaces.
type Client struct {
	*transport
	identity string
}

type pushRequest struct {
	Value []model.Message `json:"value"`
	EnvID string          `json:"env_id"`
}

// NewClient returns a client for the service at baseURL. identity stamps
// outgoing messages that carry no author.
func NewClient(baseURL, identity string, opts ...Option) *Client {
	return &Client{transport: newTransport(baseURL, opts), identity: identity}
}

// FetchSnapshot returns the shared log of envID. On any failure it returns an
// empty slice together with the error, so callers can tell an unreachable
// service from an empty log.
func (c *Client) FetchSnapshot(ctx context.Context, envID string) (msgs []model.Message, err error) {
	started := time.Now()
	defer func() { c.finish("fetch", started, err) }()

	endpoint := envBoxEndpoint + "?env_id=" + url.QueryEscape(envID)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return []model.Message{}, err
	}

	msgs, err = decodeSnapshot(endpoint, body)
	if err != nil {
		return []model.Message{}, err
	}
	util.LogDebugf("fetched %d shared messages for env %s", len(msgs), envID)
	return msgs, nil
}

// PushSnapshot replaces the shared log of envID with msgs.
func (c *Client) PushSnapshot(ctx context.Context, envID string, msgs []model.Message) (err error) {
	started := time.Now()
	defer func() { c.finish("push", started, err) }()

	if msgs == nil {
		msgs = []model.Message{}
	}
	req := pushRequest{
		Value: model.StampAuthors(msgs, c.identity),
		EnvID: envID,
	}
	if _, err = c.do(ctx, http.MethodPost, envBoxEndpoint, req); err != nil {
		return err
	}
	util.LogDebugf("pushed %d shared messages for env %s", len(msgs), envID)
	return nil
}

// decodeSnapshot extracts the value member. A missing or null value is an empty log.
func decodeSnapshot(endpoint string, body []byte) ([]model.Message, error) {
	if !gjson.ValidBytes(body) {
		return nil, &DecodeError{Endpoint: endpoint, Message: "response is not valid JSON"}
	}
	value := gjson.GetBytes(body, "value")
	if !value.Exists() || value.Type == gjson.Null {
		return []model.Message{}, nil
	}
	if !value.IsArray() {
		return nil, &DecodeError{Endpoint: endpoint, Message: "value is not an array"}
	}

	var msgs []model.Message
	if err := sonic.UnmarshalString(value.Raw, &msgs); err != nil {
		return nil, &DecodeError{Endpoint: endpoint, Message: "malformed message", Err: err}
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
