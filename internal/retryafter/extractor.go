// Package retryafter pulls an optional delay hint out of an opaque,
// caller-provided error value.
package retryafter

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// HeaderSource is implemented by error values that expose response headers.
// Lookup must be case-insensitive, matching the semantics of net/http.Header.
type HeaderSource interface {
	Headers() map[string][]string
}

// FieldSource is implemented by error values that expose a direct
// retryAfter/retry_after numeric property instead of (or in addition to) a
// headers map.
type FieldSource interface {
	RetryAfterSeconds() (float64, bool)
}

// Extract returns the caller's requested wait, in milliseconds, or false if
// err exposes none of the recognized shapes. now is used to resolve
// HTTP-date retry-after values into a relative delay.
func Extract(err error, now time.Time) (int64, bool) {
	if err == nil {
		return 0, false
	}

	if hs, ok := err.(HeaderSource); ok {
		if ms, found := fromHeaders(hs.Headers(), now); found {
			return ms, true
		}
	}

	if fs, ok := err.(FieldSource); ok {
		if secs, found := fs.RetryAfterSeconds(); found {
			return secondsToMs(secs), true
		}
	}

	return fromJSONShape(err, now)
}

// fromHeaders does a case-insensitive retry-after header lookup, accepting
// either a numeric-seconds value or an HTTP-date.
func fromHeaders(headers map[string][]string, now time.Time) (int64, bool) {
	if len(headers) == 0 {
		return 0, false
	}
	var value string
	for k, vs := range headers {
		if !strings.EqualFold(k, "retry-after") || len(vs) == 0 {
			continue
		}
		value = vs[0]
		break
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return secondsToMs(secs), true
	}
	if t, err := http.ParseTime(value); err == nil {
		wait := t.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait.Milliseconds(), true
	}
	return 0, false
}

// fromJSONShape handles errors whose structured payload is only reachable
// by marshaling to JSON and probing well-known field
// names, the way upstream error bodies serialized from an HTTP response
// commonly carry a sibling `retryAfter`/`retry_after` property.
func fromJSONShape(err error, now time.Time) (int64, bool) {
	data, marshalErr := json.Marshal(err)
	if marshalErr != nil || len(data) == 0 {
		return 0, false
	}
	if headerResult := gjson.GetBytes(data, "headers.retry-after"); headerResult.Exists() {
		if ms, ok := parseHeaderValue(headerResult.String(), now); ok {
			return ms, true
		}
	}
	for _, path := range []string{"retryAfter", "retry_after"} {
		r := gjson.GetBytes(data, path)
		if !r.Exists() {
			continue
		}
		if r.Type == gjson.Number || r.Type == gjson.String {
			if secs, parseErr := strconv.ParseFloat(strings.TrimSpace(r.String()), 64); parseErr == nil {
				return secondsToMs(secs), true
			}
		}
	}
	return 0, false
}

func parseHeaderValue(value string, now time.Time) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return secondsToMs(secs), true
	}
	if t, err := http.ParseTime(value); err == nil {
		wait := t.Sub(now)
		if wait < 0 {
			wait = 0
		}
		return wait.Milliseconds(), true
	}
	return 0, false
}

func secondsToMs(secs float64) int64 {
	if secs < 0 {
		secs = 0
	}
	return int64(math.Ceil(secs * 1000))
}
