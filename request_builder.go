// request_builder.go
// ------------------
// Turns a RequestDescription into a URL and an encoded body.
//
// - Path placeholders ({name}) are replaced with url.PathEscape'd values. Placeholders
//   without a value are kept verbatim so partial templates still produce a request.
// - Query maps are flattened recursively: slices repeat the key, maps nest as key[sub].
//   Map keys are emitted in sorted order, slice order is kept.
// - Bodies are JSON encoded when the content type contains "/json"; bytes, strings,
//   readers and form values pass through untouched.
package resilientbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// BuildURL resolves desc.URL against baseURL, substitutes path parameters and appends
// the flattened query string.
func BuildURL(baseURL string, desc *RequestDescription) (string, error) {
	if desc == nil || desc.URL == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidRequest)
	}

	path := placeholderPattern.ReplaceAllStringFunc(desc.URL, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := desc.PathParams[name]; ok {
			return url.PathEscape(v)
		}
		return m
	})

	full := path
	if !isAbsoluteURL(path) {
		if baseURL == "" {
			return "", fmt.Errorf("%w: relative URL %q without a base URL", ErrInvalidRequest, desc.URL)
		}
		full = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}

	if q := FlattenQuery(desc.Query); q != "" {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + q
	}
	return full, nil
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// FlattenQuery encodes params as a query string without the leading "?".
func FlattenQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	var parts []string
	for _, k := range sortedKeys(params) {
		flattenValue(url.QueryEscape(k), reflect.ValueOf(params[k]), &parts)
	}
	return strings.Join(parts, "&")
}

func flattenValue(key string, v reflect.Value, parts *[]string) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			// []byte is a scalar
			*parts = append(*parts, key+"="+url.QueryEscape(string(v.Bytes())))
			return
		}
		for i := 0; i < v.Len(); i++ {
			flattenValue(key, v.Index(i), parts)
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			*parts = append(*parts, key+"="+url.QueryEscape(fmt.Sprint(v.Interface())))
			return
		}
		keys := make([]string, 0, v.Len())
		for _, mk := range v.MapKeys() {
			keys = append(keys, mk.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenValue(key+"["+url.QueryEscape(k)+"]", v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())), parts)
		}
	default:
		*parts = append(*parts, key+"="+url.QueryEscape(fmt.Sprint(v.Interface())))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeBody serializes body according to contentType and returns the reader together
// with the content type that should be sent.
func EncodeBody(body any, contentType string) (io.Reader, string, error) {
	if body == nil {
		return nil, contentType, nil
	}
	isJSON := strings.Contains(strings.ToLower(contentType), "/json")

	switch b := body.(type) {
	case []byte:
		return bytes.NewReader(b), contentType, nil
	case json.RawMessage:
		return bytes.NewReader(b), orDefault(contentType, ContentTypeJSON), nil
	case string:
		return strings.NewReader(b), contentType, nil
	case io.Reader:
		return b, contentType, nil
	case url.Values:
		if !isJSON {
			return strings.NewReader(b.Encode()), orDefault(contentType, ContentTypeForm), nil
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: encoding body: %v", ErrInvalidRequest, err)
	}
	return bytes.NewReader(data), orDefault(contentType, ContentTypeJSON), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
