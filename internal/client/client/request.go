package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/sportmatch/internal/common"
)

// RetryPolicy bounds the unauthorized -> renew -> retry path of one call.
type RetryPolicy struct {
	// Renew allows a 401 to trigger credential renewal.
	Renew bool
	// Retries is how many times the call may be re-sent after a renewal.
	Retries int
}

var (
	// DefaultRetryPolicy renews once and re-sends once.
	DefaultRetryPolicy = RetryPolicy{Renew: true, Retries: 1}
	// NoRenewal is used by the auth endpoints themselves.
	NoRenewal = RetryPolicy{}
)

func (p RetryPolicy) spend() RetryPolicy {
	p.Retries--
	return p
}

// Request describes one call against the remote API. Path is relative to
// the gateway's base URL. Body, when set, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
	// Policy defaults to DefaultRetryPolicy when nil.
	Policy *RetryPolicy
}

func (r Request) policy() RetryPolicy {
	if r.Policy == nil {
		return DefaultRetryPolicy
	}
	return *r.Policy
}

func (r Request) hasExplicitAuth() bool {
	return r.Header != nil && r.Header.Get(common.AuthorizationHeader) != ""
}

// Response is a fully read 2xx/3xx answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
