package service

import (
	"io"
	"net/http"
	"strings"

	"github.com/Scalingo/sclng-language-stats/model"
	log "github.com/sirupsen/logrus"
)

// CallResult is the outcome of a single github call
// Header is nil when the call failed before or while reading the response
// Body holds the raw response text on failure and is empty on success
type CallResult[T any] struct {
	Value  T
	Code   model.APIErrorCode
	Header http.Header
	Body   string
}

// CallAPI executes the request exactly once and classifies the outcome
// the whole body is read before any decision so the error text is kept for diagnostics
// expected failures (non success status, invalid body) never produce a Go error, only an error code
// no retry is done here, this is up to the caller
func CallAPI[T any](do func() (*http.Response, error), onSuccess func(body []byte) (T, error), defaultOnError T) CallResult[T] {
	resp, err := do()
	if err != nil {
		log.WithError(err).Debug("github request failed before a response was received")
		return CallResult[T]{Value: defaultOnError, Code: model.OtherError}
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	content := string(body)

	if err != nil {
		log.WithError(err).Debug("unable to read github response body")
		return CallResult[T]{Value: defaultOnError, Code: model.OtherError, Body: content}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		code := classifyFailure(resp.StatusCode, resp.Header, content)

		log.WithFields(log.Fields{
			"status": resp.StatusCode,
			"code":   code.String(),
		}).Debug("github responded with a non success status")

		return CallResult[T]{Value: defaultOnError, Code: code, Header: resp.Header, Body: content}
	}

	value, err := onSuccess(body)
	if err != nil {
		log.WithError(err).Debug("unable to parse github response")
		return CallResult[T]{Value: defaultOnError, Code: model.OtherError, Body: content}
	}

	return CallResult[T]{Value: value, Code: model.NoError, Header: resp.Header}
}

// classifyFailure decides whether a non success response is a rate limit rejection
// github answers 403 for primary rate limits and 403 or 429 for secondary ones
func classifyFailure(status int, header http.Header, content string) model.APIErrorCode {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return model.OtherError
	}

	if header.Get(model.HeaderRateLimitRemaining) == "0" || strings.Contains(strings.ToLower(content), "rate limit") {
		return model.RateLimitExceeded
	}

	return model.OtherError
}
