// Package graph implements the meeting provider on the Microsoft Graph
// onlineMeetings API.
package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	msgraph "github.com/yaegashi/msgraph.go/beta"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	graphScope     = "https://graph.microsoft.com/.default"
	tokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	preferHeader   = "include-unknown-enum-members"
)

// Config identifies the application registration used to call Graph.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the OAuth2 client. The given client must
// authenticate requests itself.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client talks to the Graph onlineMeetings endpoints on behalf of organisers.
type Client struct {
	config     Config
	httpClient *http.Client
	builder    *msgraph.GraphServiceRequestBuilder
}

// New returns a Client. Without credentials the client reports itself
// unavailable and every call fails with ErrNotConfigured.
func New(ctx context.Context, config Config, opts ...Option) *Client {
	c := &Client{config: config}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil && config.Configured() {
		cc := clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     fmt.Sprintf(tokenURLFormat, config.TenantID),
			Scopes:       []string{graphScope},
		}
		c.httpClient = cc.Client(ctx)
	}

	if c.httpClient != nil {
		wrapped := *c.httpClient
		wrapped.Transport = &preferTransport{base: c.httpClient.Transport}
		if config.Timeout > 0 {
			wrapped.Timeout = config.Timeout
		}
		c.httpClient = &wrapped
		c.builder = msgraph.NewClient(c.httpClient)
	}
	return c
}

// Available reports whether the client can reach Graph.
func (c *Client) Available() bool {
	return c != nil && c.builder != nil
}

// preferTransport asks Graph to return enum members added after v1.0,
// such as the coorganizer meeting role.
type preferTransport struct {
	base http.RoundTripper
}

func (t *preferTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Prefer", preferHeader)
	return base.RoundTrip(clone)
}
