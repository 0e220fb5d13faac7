package erp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ResponseKind tags the shape of a successful response body.
type ResponseKind int

const (
	// KindEmpty is a 2xx response without a body.
	KindEmpty ResponseKind = iota
	// KindJSON is a 2xx response with a JSON body decoded into Data.
	KindJSON
	// KindRaw is a 2xx response whose body is not JSON.
	KindRaw
)

func (k ResponseKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindJSON:
		return "json"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Response is a successful ERP response.
type Response struct {
	StatusCode int
	Kind       ResponseKind
	// Data holds the decoded JSON value for KindJSON. Numbers are json.Number.
	Data any
	Raw  []byte
}

// Object returns the body as a JSON object.
func (r *Response) Object() (map[string]any, bool) {
	if r == nil || r.Kind != KindJSON {
		return nil, false
	}
	obj, ok := r.Data.(map[string]any)
	return obj, ok
}

// List returns the body as a list of JSON objects, skipping other elements.
func (r *Response) List() []map[string]any {
	if r == nil || r.Kind != KindJSON {
		return nil
	}
	arr, ok := r.Data.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// ID returns the non-zero "id" field of an object body.
func (r *Response) ID() (int64, bool) {
	obj, ok := r.Object()
	if !ok {
		return 0, false
	}
	id, ok := AsInt64(obj["id"])
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// Message extracts a human readable message from the body, or fallback.
func (r *Response) Message(fallback string) string {
	if r == nil {
		return fallback
	}
	switch r.Kind {
	case KindJSON:
		return ErrorMessage(r.Data, fallback)
	case KindRaw:
		return ErrorMessage(string(r.Raw), fallback)
	default:
		return fallback
	}
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// TokenShape names where a login token was found.
type TokenShape string

const (
	TokenFieldToken       TokenShape = "token"
	TokenFieldAccessToken TokenShape = "accessToken"
	TokenFieldSnakeCase   TokenShape = "access_token"
	TokenJSONString       TokenShape = "json_string"
	TokenRawBody          TokenShape = "raw"
)

var tokenFields = []TokenShape{TokenFieldToken, TokenFieldAccessToken, TokenFieldSnakeCase}

// DecodeToken extracts a bearer token from a login response. Object fields
// are tried in order token, accessToken, access_token; then a JSON string
// body; then a raw non-JSON body.
func DecodeToken(resp *Response) (string, TokenShape, error) {
	if resp == nil {
		return "", "", ErrUnrecognizedShape
	}
	switch resp.Kind {
	case KindJSON:
		if obj, ok := resp.Data.(map[string]any); ok {
			for _, field := range tokenFields {
				if s, ok := obj[string(field)].(string); ok && s != "" {
					return s, field, nil
				}
			}
			return "", "", ErrUnrecognizedShape
		}
		if s, ok := resp.Data.(string); ok && s != "" {
			return s, TokenJSONString, nil
		}
	case KindRaw:
		if s := strings.TrimSpace(string(resp.Raw)); s != "" {
			return s, TokenRawBody, nil
		}
	}
	return "", "", ErrUnrecognizedShape
}

// ErrorMessage extracts a message from a decoded body. Object fields are
// tried in order message, error, errors; a string body is returned as is.
func ErrorMessage(body any, fallback string) string {
	switch v := body.(type) {
	case map[string]any:
		if msg, ok := v["message"]; ok && msg != nil {
			if s := stringify(msg); s != "" {
				return s
			}
		}
		if e, ok := v["error"]; ok && e != nil {
			if s := stringify(e); s != "" {
				return s
			}
		}
		if errs, ok := v["errors"]; ok && errs != nil {
			if list, ok := errs.([]any); ok {
				parts := make([]string, 0, len(list))
				allStrings := true
				for _, item := range list {
					s, ok := item.(string)
					if !ok {
						allStrings = false
						break
					}
					parts = append(parts, s)
				}
				if allStrings && len(parts) > 0 {
					return strings.Join(parts, ", ")
				}
			}
			if s := stringify(errs); s != "" {
				return s
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return fallback
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// AsInt64 converts a decoded JSON scalar into an int64.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// AsString renders a decoded JSON scalar for loose comparisons.
func AsString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
