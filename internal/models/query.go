// Package models defines the query descriptor, engine result set, response and audit record.
package models

import (
	"encoding/json"
	"fmt"
)

// Kind is the match strategy applied to a field.
type Kind string

// Supported query kinds.
const (
	KindTerm     Kind = "term"
	KindMatch    Kind = "match"
	KindFuzzy    Kind = "fuzzy"
	KindRegexp   Kind = "regexp"
	KindWildcard Kind = "wildcard"
	KindDefault  Kind = "default"
)

// Descriptor defaults.
const (
	DefaultKind    = KindTerm
	DefaultField   = "email.raw"
	DefaultLimit   = 20
	DefaultIndex   = "pwd_*"
	DefaultDocType = "account"
)

// Descriptor is the normalized representation of a search request.
// Exactly one of Text and Raw carries the query; both unset means the descriptor is empty.
type Descriptor struct {
	// Text is a free-text query value.
	Text string
	// Raw is a pre-built structured query forwarded to the engine as-is.
	Raw map[string]any

	Kind        Kind
	Field       string
	Offset      int
	Limit       int
	Index       string
	DocType     string
	SuppressLog bool

	// Requested holds kind, field and limit exactly as the client sent them.
	Requested Requested
}

// Requested is the subset of parameters recorded as supplied. Zero values mean the
// client left the parameter out.
type Requested struct {
	Kind  string
	Field string
	Limit int
}

// NewDescriptor returns a descriptor with every field at its default.
func NewDescriptor(index, docType string) *Descriptor {
	if index == "" {
		index = DefaultIndex
	}
	if docType == "" {
		docType = DefaultDocType
	}
	return &Descriptor{
		Kind:    DefaultKind,
		Field:   DefaultField,
		Limit:   DefaultLimit,
		Index:   index,
		DocType: docType,
	}
}

// IsRaw reports whether the query is a structured mapping.
func (d *Descriptor) IsRaw() bool {
	return d.Raw != nil
}

// IsEmpty reports whether there is nothing to search for.
func (d *Descriptor) IsEmpty() bool {
	if d.Raw != nil {
		return len(d.Raw) == 0
	}
	return d.Text == ""
}

// QueryString flattens the query for storage. Raw mappings render as canonical JSON
// (object keys sorted) so the same mapping always yields the same string.
func (d *Descriptor) QueryString() string {
	if d.Raw == nil {
		return d.Text
	}
	b, err := json.Marshal(d.Raw)
	if err != nil {
		return fmt.Sprintf("%v", d.Raw)
	}
	return string(b)
}
