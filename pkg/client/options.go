package client

import "net/http"

// SocketIDProvider exposes the live channel's correlation id. An empty id
// means no channel is connected.
type SocketIDProvider interface {
	ID() string
}

// CallOption customizes a single Call.
type CallOption func(*callOptions)

type callOptions struct {
	token     string
	socket    SocketIDProvider
	cache     bool
	cacheUser int64
	requestID string
}

// WithBearer authorizes the request with the session token.
func WithBearer(token string) CallOption {
	return func(o *callOptions) { o.token = token }
}

// WithSocket tags the request with the live channel id when one exists.
func WithSocket(p SocketIDProvider) CallOption {
	return func(o *callOptions) { o.socket = p }
}

// WithCache serves the GET from the Redis lookup cache, scoped to userID.
func WithCache(userID int64) CallOption {
	return func(o *callOptions) {
		o.cache = true
		o.cacheUser = userID
	}
}

// WithRequestID overrides the generated X-Request-Id.
func WithRequestID(id string) CallOption {
	return func(o *callOptions) { o.requestID = id }
}

func collectOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o callOptions) apply(req *http.Request) {
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}
	if o.socket != nil {
		if id := o.socket.ID(); id != "" {
			req.Header.Set(HeaderSocketID, id)
		}
	}
	if o.requestID != "" {
		req.Header.Set(HeaderRequestID, o.requestID)
	}
}
