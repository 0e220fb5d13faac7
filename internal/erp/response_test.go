package erp

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(t *testing.T, body string) *Response {
	t.Helper()
	v, err := decodeJSON([]byte(body))
	require.NoError(t, err)
	return &Response{StatusCode: 200, Kind: KindJSON, Data: v, Raw: []byte(body)}
}

func TestDecodeToken(t *testing.T) {
	tests := []struct {
		name      string
		resp      *Response
		wantToken string
		wantShape TokenShape
		wantErr   bool
	}{
		{name: "token wins", resp: jsonResponse(t, `{"access_token":"c","accessToken":"b","token":"a"}`), wantToken: "a", wantShape: TokenFieldToken},
		{name: "camel case next", resp: jsonResponse(t, `{"access_token":"c","accessToken":"b"}`), wantToken: "b", wantShape: TokenFieldAccessToken},
		{name: "snake case last", resp: jsonResponse(t, `{"access_token":"c"}`), wantToken: "c", wantShape: TokenFieldSnakeCase},
		{name: "json string", resp: jsonResponse(t, `"plain"`), wantToken: "plain", wantShape: TokenJSONString},
		{name: "raw body", resp: &Response{Kind: KindRaw, Raw: []byte(" eyJhbGci \n")}, wantToken: "eyJhbGci", wantShape: TokenRawBody},
		{name: "empty token field", resp: jsonResponse(t, `{"token":""}`), wantErr: true},
		{name: "unrelated object", resp: jsonResponse(t, `{"user":"x"}`), wantErr: true},
		{name: "array", resp: jsonResponse(t, `[1,2]`), wantErr: true},
		{name: "empty", resp: &Response{Kind: KindEmpty}, wantErr: true},
		{name: "nil", resp: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, shape, err := DecodeToken(tt.resp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnrecognizedShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantShape, shape)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	decode := func(s string) any {
		v, err := decodeJSON([]byte(s))
		require.NoError(t, err)
		return v
	}

	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "message first", body: decode(`{"message":"m","error":"e"}`), want: "m"},
		{name: "error string", body: decode(`{"error":"e","errors":["x"]}`), want: "e"},
		{name: "error object", body: decode(`{"error":{"code":7}}`), want: `{"code":7}`},
		{name: "errors list", body: decode(`{"errors":["a","b"]}`), want: "a, b"},
		{name: "errors mixed", body: decode(`{"errors":[{"f":"x"}]}`), want: `[{"f":"x"}]`},
		{name: "string body", body: "gateway timeout", want: "gateway timeout"},
		{name: "nothing useful", body: decode(`{"status":"nope"}`), want: "fallback"},
		{name: "nil", body: nil, want: "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.body, "fallback"))
		})
	}
}

func TestResponseID(t *testing.T) {
	_, ok := jsonResponse(t, `{"id":0}`).ID()
	assert.False(t, ok)

	id, ok := jsonResponse(t, `{"id":9007199254740993}`).ID()
	require.True(t, ok)
	assert.EqualValues(t, 9007199254740993, id)

	id, ok = jsonResponse(t, `{"id":"15"}`).ID()
	require.True(t, ok)
	assert.EqualValues(t, 15, id)

	_, ok = (&Response{Kind: KindRaw, Raw: []byte("12")}).ID()
	assert.False(t, ok)
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{in: json.Number("42"), want: 42, ok: true},
		{in: json.Number("4.0"), want: 4, ok: true},
		{in: float64(3), want: 3, ok: true},
		{in: " 8 ", want: 8, ok: true},
		{in: "SKU-1", ok: false},
		{in: nil, ok: false},
	}
	for _, tt := range tests {
		got, ok := AsInt64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestDecodeJSON_RejectsTrailingData(t *testing.T) {
	_, err := decodeJSON([]byte(`{"a":1} trailing`))
	assert.Error(t, err)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "bad data", Reason(&StatusError{StatusCode: 400, Message: "bad data"}))
	assert.Equal(t, "status 502", Reason(&StatusError{StatusCode: 502}))
	assert.Equal(t, "missing id", Reason(&ResponseError{Op: "create order", Message: "missing id"}))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("س", 300) // two bytes per rune
	cut := truncate("a"+body, 500)
	assert.True(t, utf8.ValidString(cut))
	assert.Len(t, cut, 499)

	assert.Equal(t, "short", truncate("short", 500))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}
