package rest

import "net/http"

// Auth decorates every outgoing request with credentials.
type Auth interface {
	Apply(r *http.Request)
}

type APIKeyAuth struct {
	Header string
	Key    string
}

func (a APIKeyAuth) Apply(r *http.Request) { r.Header.Set(a.Header, a.Key) }

type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) Apply(r *http.Request) { r.SetBasicAuth(a.Username, a.Password) }

// authTransport is the single interception point where credentials are attached.
type authTransport struct {
	next http.RoundTripper
	auth Auth
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	t.auth.Apply(r)
	return t.next.RoundTrip(r)
}
