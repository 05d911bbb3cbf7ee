// Package cli formats search results and audit records for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact writes one JSON object per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is indented JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const maxValueLen = 120

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, resp *models.Response, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeIndented(w, resp)
	case OutputCompact:
		enc := json.NewEncoder(w)
		for _, rec := range resp.Results {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	default:
		writeSearchResultsText(w, resp)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, resp *models.Response) {
	fmt.Fprintf(w, "\nFound %d accounts", resp.Total)
	if resp.Took != nil {
		fmt.Fprintf(w, " in %dms", *resp.Took)
	}
	if resp.TimedOut != nil && *resp.TimedOut {
		fmt.Fprint(w, " (timed out)")
	}
	fmt.Fprintf(w, ", showing %d\n\n", len(resp.Results))
	for _, rec := range resp.Results {
		fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
		fmt.Fprintf(w, "ID: %v | Score: %s\n", rec["id"], formatScore(rec["score"]))
		for _, k := range sortedKeys(rec) {
			if k == "id" || k == "score" {
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", k, utils.Truncate(fmt.Sprint(rec[k]), maxValueLen))
		}
	}
	if len(resp.Results) > 0 {
		fmt.Fprintln(w)
	}
}

func formatScore(v any) string {
	switch s := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", s)
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// WriteAuditRecords writes recorded searches, newest first as given.
func WriteAuditRecords(w io.Writer, records []*models.AuditRecord, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if records == nil {
			records = []*models.AuditRecord{}
		}
		return writeIndented(w, records)
	case OutputCompact:
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	default:
		if len(records) == 0 {
			fmt.Fprintln(w, "No searches recorded.")
			return nil
		}
		for _, rec := range records {
			kind := rec.Kind
			if kind == "" {
				kind = "raw"
			}
			fmt.Fprintf(w, "%s  %-8s %-14s limit=%-4d hits=%-6d took=%dms  %s\n",
				rec.Timestamp.Format(time.RFC3339), kind, rec.Field, rec.Limit, rec.Hits, rec.Took,
				utils.Truncate(rec.Query, maxValueLen))
		}
		return nil
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
