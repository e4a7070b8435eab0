package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultUserAgent identifies this client to the API.
const DefaultUserAgent = "Ximilar Client/Go"

const (
	schemeToken = "Token "
	schemeJWT   = "JWT "
)

// Credentials holds the API credential. Exactly one of Token or JWT is needed;
// JWT takes precedence when both are set.
type Credentials struct {
	Token string
	JWT   string
}

// authorization resolves the Authorization header value.
func (c Credentials) authorization() (string, error) {
	switch {
	case c.JWT != "":
		return schemeJWT + c.JWT, nil
	case c.Token == "":
		return "", tokenMissingError()
	case strings.HasPrefix(c.Token, schemeToken), strings.HasPrefix(c.Token, schemeJWT):
		return c.Token, nil
	case looksLikeJWT(c.Token):
		return schemeJWT + c.Token, nil
	default:
		return schemeToken + c.Token, nil
	}
}

// looksLikeJWT matches the compact serialization of a JSON web token:
// three dot-separated segments, the header starting with base64url "{"".
func looksLikeJWT(token string) bool {
	return strings.HasPrefix(token, "eyJ") && strings.Count(token, ".") == 2
}

// Default knows how to talk to Ximilar services on top of a Transport: it
// authenticates every call, serializes args, and interprets the reply.
type Default struct {
	transport     Transport
	authorization string
	userAgent     string
}

// DefaultOption configures a Default endpoint.
type DefaultOption func(*Default)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) DefaultOption {
	return func(d *Default) {
		if userAgent != "" {
			d.userAgent = userAgent
		}
	}
}

// NewDefault creates an authenticated endpoint. It fails with a config-class
// EndpointError wrapping ErrTokenMissing when no credential is given.
func NewDefault(transport Transport, creds Credentials, opts ...DefaultOption) (*Default, error) {
	authorization, err := creds.authorization()
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassConfig)).Inc()
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	d := &Default{
		transport:     transport,
		authorization: authorization,
		userAgent:     DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// URL returns the base URL of the underlying transport.
func (d *Default) URL() string {
	return d.transport.URL()
}

// Sub creates an endpoint working with a fixed part of the URL, keeping the credential.
func (d *Default) Sub(suffix string) Endpoint {
	return &Default{
		transport:     d.transport.Sub(suffix),
		authorization: d.authorization,
		userAgent:     d.userAgent,
	}
}

// Get calls GET passing args as request parameters.
func (d *Default) Get(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return d.parse(d.transport.Get(ctx, suffix, queryValues(args), d.headers()))
}

// Delete calls DELETE passing args as request parameters.
func (d *Default) Delete(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	return d.parse(d.transport.Delete(ctx, suffix, queryValues(args), d.headers()))
}

// Post calls POST passing args as JSON in the request body.
func (d *Default) Post(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	body, err := serialize(args)
	if err != nil {
		return nil, err
	}
	return d.parse(d.transport.Post(ctx, suffix, body, d.headers()))
}

// Put calls PUT passing args as JSON in the request body.
func (d *Default) Put(ctx context.Context, suffix string, args Args) (json.RawMessage, error) {
	body, err := serialize(args)
	if err != nil {
		return nil, err
	}
	return d.parse(d.transport.Put(ctx, suffix, body, d.headers()))
}

func (d *Default) headers() http.Header {
	return http.Header{
		"Content-Type":  []string{"application/json"},
		"Authorization": []string{d.authorization},
		"User-Agent":    []string{d.userAgent},
	}
}

// serialize encodes args as a JSON body; nil args send no body.
func serialize(args Args) ([]byte, error) {
	if args == nil {
		return nil, nil
	}
	body, err := jsonAPI.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return body, nil
}

// parse interprets a transport result. Decode errors are returned unwrapped.
func (d *Default) parse(result *Result, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}

	if result.Status == http.StatusNoContent {
		return nil, nil
	}

	if result.Status >= 300 {
		epErr := httpError(result.Status, result.Content)
		errorsTotal.WithLabelValues(string(epErr.Class)).Inc()
		return nil, epErr
	}

	if result.ContentType != "application/json" {
		errorsTotal.WithLabelValues(string(ErrorClassContentType)).Inc()
		return nil, contentTypeError(result.ContentType)
	}

	var raw json.RawMessage
	if err := jsonAPI.Unmarshal(result.Content, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
