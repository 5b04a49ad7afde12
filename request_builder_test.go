package resilientbridge_test

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		desc    resilientbridge.RequestDescription
		want    string
		wantErr bool
	}{
		{
			name: "relative path with params",
			base: "https://api.github.com/",
			desc: resilientbridge.RequestDescription{
				URL:        "/repos/{owner}/{repo}/issues",
				PathParams: map[string]string{"owner": "octo cat", "repo": "hello/world"},
			},
			want: "https://api.github.com/repos/octo%20cat/hello%2Fworld/issues",
		},
		{
			name: "unresolved placeholder is kept",
			base: "https://api.example.com",
			desc: resilientbridge.RequestDescription{
				URL:        "/teams/{team}/members/{member}",
				PathParams: map[string]string{"team": "core"},
			},
			want: "https://api.example.com/teams/core/members/{member}",
		},
		{
			name: "braces in values are escaped",
			base: "https://api.example.com",
			desc: resilientbridge.RequestDescription{
				URL:        "/items/{id}",
				PathParams: map[string]string{"id": "{x}"},
			},
			want: "https://api.example.com/items/%7Bx%7D",
		},
		{
			name: "absolute URL ignores base",
			base: "https://api.example.com",
			desc: resilientbridge.RequestDescription{URL: "https://uploads.example.com/files"},
			want: "https://uploads.example.com/files",
		},
		{
			name: "query appended to existing query",
			base: "https://api.example.com",
			desc: resilientbridge.RequestDescription{
				URL:   "/search?sort=asc",
				Query: map[string]any{"q": "a b"},
			},
			want: "https://api.example.com/search?sort=asc&q=a+b",
		},
		{
			name:    "relative URL without base",
			desc:    resilientbridge.RequestDescription{URL: "/x"},
			wantErr: true,
		},
		{
			name:    "empty URL",
			base:    "https://api.example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := resilientbridge.BuildURL(tt.base, &tt.desc)
			if tt.wantErr {
				require.ErrorIs(t, err, resilientbridge.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL_NoBracesFromDeclaredParams(t *testing.T) {
	t.Parallel()

	values := []string{"plain", "{", "}", "{a}", "a/b{c}", "ünï{code}"}
	for _, v := range values {
		desc := &resilientbridge.RequestDescription{
			URL:        "/a/{first}/b/{second}",
			PathParams: map[string]string{"first": v, "second": v + "}"},
		}
		got, err := resilientbridge.BuildURL("https://api.example.com", desc)
		require.NoError(t, err)
		assert.NotContains(t, got, "{", v)
		assert.NotContains(t, got, "}", v)
	}
}

func TestFlattenQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			name:   "nested object",
			params: map[string]any{"q": map[string]any{"b": 1}},
			want:   "q[b]=1",
		},
		{
			name:   "array keeps order",
			params: map[string]any{"q": []any{"z", "a", 3}},
			want:   "q=z&q=a&q=3",
		},
		{
			name:   "typed slice",
			params: map[string]any{"ids": []int{3, 1, 2}},
			want:   "ids=3&ids=1&ids=2",
		},
		{
			name: "deep nesting with sorted keys",
			params: map[string]any{
				"filter": map[string]any{
					"status": []string{"open", "closed"},
					"author": map[string]string{"login": "octo"},
				},
				"a": true,
			},
			want: "a=true&filter[author][login]=octo&filter[status]=open&filter[status]=closed",
		},
		{
			name:   "nil values are skipped",
			params: map[string]any{"a": nil, "b": "x"},
			want:   "b=x",
		},
		{
			name:   "keys and values are escaped",
			params: map[string]any{"a key": map[string]any{"s&b": "x=y"}},
			want:   "a+key[s%26b]=x%3Dy",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, resilientbridge.FlattenQuery(tt.params))
		})
	}
}

func TestEncodeBody(t *testing.T) {
	t.Parallel()

	read := func(t *testing.T, r io.Reader) string {
		t.Helper()
		if r == nil {
			return ""
		}
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(data)
	}

	t.Run("struct defaults to JSON", func(t *testing.T) {
		t.Parallel()
		r, ct, err := resilientbridge.EncodeBody(map[string]any{"title": "bug"}, "")
		require.NoError(t, err)
		assert.Equal(t, resilientbridge.ContentTypeJSON, ct)
		assert.JSONEq(t, `{"title":"bug"}`, read(t, r))
	})

	t.Run("declared JSON media type", func(t *testing.T) {
		t.Parallel()
		r, ct, err := resilientbridge.EncodeBody(struct {
			N int `json:"n"`
		}{N: 2}, "application/vnd.api+json")
		require.NoError(t, err)
		assert.Equal(t, "application/vnd.api+json", ct)
		assert.Equal(t, `{"n":2}`, read(t, r))
	})

	t.Run("string passes through", func(t *testing.T) {
		t.Parallel()
		r, ct, err := resilientbridge.EncodeBody("raw text", "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "text/plain", ct)
		assert.Equal(t, "raw text", read(t, r))
	})

	t.Run("bytes pass through", func(t *testing.T) {
		t.Parallel()
		r, _, err := resilientbridge.EncodeBody([]byte{0x00, 0x01}, "application/octet-stream")
		require.NoError(t, err)
		assert.Equal(t, "\x00\x01", read(t, r))
	})

	t.Run("raw JSON is not re-encoded", func(t *testing.T) {
		t.Parallel()
		r, ct, err := resilientbridge.EncodeBody(json.RawMessage(`{"a":1}`), "")
		require.NoError(t, err)
		assert.Equal(t, resilientbridge.ContentTypeJSON, ct)
		assert.Equal(t, `{"a":1}`, read(t, r))
	})

	t.Run("form values", func(t *testing.T) {
		t.Parallel()
		r, ct, err := resilientbridge.EncodeBody(url.Values{"a": {"1"}, "b": {"x y"}}, "")
		require.NoError(t, err)
		assert.Equal(t, resilientbridge.ContentTypeForm, ct)
		assert.Equal(t, "a=1&b=x+y", read(t, r))
	})

	t.Run("reader passes through", func(t *testing.T) {
		t.Parallel()
		r, _, err := resilientbridge.EncodeBody(strings.NewReader("stream"), "")
		require.NoError(t, err)
		assert.Equal(t, "stream", read(t, r))
	})

	t.Run("nil body", func(t *testing.T) {
		t.Parallel()
		r, _, err := resilientbridge.EncodeBody(nil, "application/json")
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("unencodable value", func(t *testing.T) {
		t.Parallel()
		_, _, err := resilientbridge.EncodeBody(func() {}, "")
		require.ErrorIs(t, err, resilientbridge.ErrInvalidRequest)
	})
}
