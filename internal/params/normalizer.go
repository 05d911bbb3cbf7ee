// Package params turns loosely typed request parameters into a query descriptor.
package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hyperjump/elastipass/internal/models"
)

// Parameter keys with special meaning.
const (
	KeyQuery   = "q"
	KeyKind    = "kind"
	KeyField   = "field"
	KeyOffset  = "offset"
	KeyLimit   = "limit"
	KeyPage    = "page"
	KeyNoLog   = "nolog"
	KeyIndex   = "index"
	KeyDocType = "doc_type"
)

var windowKeys = []string{KeyOffset, KeyLimit, KeyPage}

// Normalizer builds descriptors using the configured index and document type as defaults.
type Normalizer struct {
	index   string
	docType string
}

// NewNormalizer creates a normalizer. Empty index or docType fall back to the model defaults.
func NewNormalizer(index, docType string) *Normalizer {
	return &Normalizer{index: index, docType: docType}
}

// Normalize converts merged request parameters into a descriptor.
// The input map is not modified. Errors wrap models.ErrInvalidParameter.
func (n *Normalizer) Normalize(raw map[string]any) (*models.Descriptor, error) {
	args := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "" {
			continue
		}
		args[k] = v
	}

	for _, key := range windowKeys {
		v, ok := args[key]
		if !ok {
			continue
		}
		i, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidParameter, key, err)
		}
		args[key] = i
	}

	d := models.NewDescriptor(n.index, n.docType)

	if v, ok := args[KeyNoLog]; ok {
		if truthy(v) {
			d.SuppressLog = true
		}
		delete(args, KeyNoLog)
	}

	// Only first-page views are logged.
	if page, ok := args[KeyPage]; ok && page.(int) != 1 {
		d.SuppressLog = true
	}

	if page, ok := args[KeyPage]; ok {
		if limit, ok := args[KeyLimit]; ok {
			offset, err := pageOffset(page.(int), limit.(int))
			if err != nil {
				return nil, err
			}
			args[KeyOffset] = offset
			delete(args, KeyPage)
		}
	}

	if _, ok := args[KeyQuery]; !ok {
		fromBody(d, args)
	} else if err := fromQuery(d, args); err != nil {
		return nil, err
	}

	if d.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative, got %d", models.ErrInvalidParameter, d.Offset)
	}
	if d.Limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", models.ErrInvalidParameter, d.Limit)
	}

	if d.IsEmpty() {
		d.SuppressLog = true
	}
	return d, nil
}

// pageOffset returns (page-1)*limit. Pages below 1 start at offset 0.
func pageOffset(page, limit int) (int, error) {
	if page <= 1 || limit <= 0 {
		return 0, nil
	}
	if page-1 > math.MaxInt/limit {
		return 0, fmt.Errorf("%w: page %d with limit %d is out of range", models.ErrInvalidParameter, page, limit)
	}
	return (page - 1) * limit, nil
}

// fromBody treats every remaining parameter except the window keys as the raw query.
func fromBody(d *models.Descriptor, args map[string]any) {
	for _, key := range windowKeys {
		v, ok := args[key]
		if !ok {
			continue
		}
		setWindow(d, key, v.(int))
		delete(args, key)
	}
	d.Raw = args
}

func fromQuery(d *models.Descriptor, args map[string]any) error {
	if err := setQuery(d, args[KeyQuery]); err != nil {
		return err
	}
	if v, ok := args[KeyOffset]; ok {
		setWindow(d, KeyOffset, v.(int))
	}
	if v, ok := args[KeyLimit]; ok {
		setWindow(d, KeyLimit, v.(int))
	}
	for key, dst := range map[string]*string{
		KeyField:   &d.Field,
		KeyIndex:   &d.Index,
		KeyDocType: &d.DocType,
	} {
		s, err := optionalString(args, key)
		if err != nil {
			return err
		}
		if s != "" {
			*dst = s
		}
	}
	d.Requested.Field, _ = optionalString(args, KeyField)
	kind, err := optionalString(args, KeyKind)
	if err != nil {
		return err
	}
	if kind != "" {
		d.Kind = models.Kind(kind)
		d.Requested.Kind = kind
	}
	return nil
}

func setWindow(d *models.Descriptor, key string, v int) {
	switch key {
	case KeyOffset:
		d.Offset = v
	case KeyLimit:
		d.Limit = v
		d.Requested.Limit = v
	}
}

func setQuery(d *models.Descriptor, v any) error {
	switch q := v.(type) {
	case nil:
	case string:
		d.Text = q
	case map[string]any:
		d.Raw = q
	case json.Number:
		d.Text = q.String()
	case float64:
		d.Text = strconv.FormatFloat(q, 'f', -1, 64)
	case int:
		d.Text = strconv.Itoa(q)
	case bool:
		d.Text = strconv.FormatBool(q)
	default:
		return fmt.Errorf("%w: q must be a string or an object, got %T", models.ErrInvalidParameter, v)
	}
	return nil
}

func optionalString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", models.ErrInvalidParameter, key, v)
	}
	return s, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), nil
		}
		return 0, fmt.Errorf("not an integer: %s", n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// truthy reads a flag the way a decoded request value is tested for presence: any
// non-empty string is true (so nolog=0 suppresses), JSON false, zero, null and empty
// containers are false.
func truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		return b != ""
	case json.Number:
		f, err := b.Float64()
		return err != nil || f != 0
	case float64:
		return b != 0
	case int:
		return b != 0
	case map[string]any:
		return len(b) > 0
	case []any:
		return len(b) > 0
	default:
		return true
	}
}
