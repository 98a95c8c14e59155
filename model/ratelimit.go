package model

import (
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RateLimitInfo is the last rate limit state observed from github response headers
// both fields are "0" until a header has been seen, so "0" can also mean unknown
type RateLimitInfo struct {
	Remaining string `json:"remaining"`
	Reset     string `json:"reset"`
}

func NewRateLimitInfo() RateLimitInfo {
	return RateLimitInfo{
		Remaining: "0",
		Reset:     "0",
	}
}

// Merge updates the info with the rate limit headers present in the response
// absent headers keep the previous value, present but empty headers are stored as "0"
func (r *RateLimitInfo) Merge(headers http.Header) {
	if headers == nil {
		return
	}

	if values, found := headers[http.CanonicalHeaderKey(HeaderRateLimitRemaining)]; found {
		r.Remaining = firstOrZero(values)
	}

	if values, found := headers[http.CanonicalHeaderKey(HeaderRateLimitReset)]; found {
		r.Reset = firstOrZero(values)
	}
}

// WithDefaults replaces empty fields with "0"
func (r RateLimitInfo) WithDefaults() RateLimitInfo {
	if r.Remaining == "" {
		r.Remaining = "0"
	}

	if r.Reset == "" {
		r.Reset = "0"
	}

	return r
}

// ResetTime returns the reset epoch as a time, false when unknown
func (r RateLimitInfo) ResetTime() (time.Time, bool) {
	epoch, err := strconv.ParseInt(r.Reset, 10, 64)
	if err != nil || epoch <= 0 {
		return time.Time{}, false
	}

	return time.Unix(epoch, 0).UTC(), true
}

func firstOrZero(values []string) string {
	if len(values) == 0 || values[0] == "" {
		return "0"
	}

	return values[0]
}
