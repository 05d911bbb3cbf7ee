package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/hyperjump/elastipass/internal/models"
)

const maxBodyBytes = 1 << 20

// FromRequest collects parameters from the request body (JSON object or form) and the
// query string. Query-string values win on key collision; only the first value of a
// repeated key is used.
func FromRequest(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if r.Body != nil {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", models.ErrInvalidParameter, err)
		}
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/x-www-form-urlencoded" {
			form, err := url.ParseQuery(string(data))
			if err != nil {
				return nil, fmt.Errorf("%w: form body: %v", models.ErrInvalidParameter, err)
			}
			body = firstValues(form)
		} else if body, err = DecodeBody(data); err != nil {
			return nil, err
		}
	}
	return Merge(body, r.URL.Query()), nil
}

// DecodeBody decodes a JSON object body. Numbers are kept as json.Number so raw
// queries are forwarded without float rounding. An empty body yields an empty map.
func DecodeBody(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: body is not valid JSON: %v", models.ErrInvalidParameter, err)
	}
	switch obj := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return obj, nil
	default:
		return nil, fmt.Errorf("%w: body must be a JSON object, got %T", models.ErrInvalidParameter, v)
	}
}

// Merge overlays query-string values onto body values and drops the empty key.
func Merge(body map[string]any, values url.Values) map[string]any {
	out := make(map[string]any, len(body)+len(values))
	for k, v := range body {
		out[k] = v
	}
	for k, v := range firstValues(values) {
		out[k] = v
	}
	delete(out, "")
	return out
}

func firstValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
