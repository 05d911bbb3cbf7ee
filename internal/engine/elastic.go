package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/query"
)

// ElasticConfig holds the cluster connection settings.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Elastic runs queries against an Elasticsearch cluster.
type Elastic struct {
	es *elasticsearch.Client
}

// NewElastic creates a client for the given cluster. No request is sent until the first search.
func NewElastic(cfg ElasticConfig) (*Elastic, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &Elastic{es: es}, nil
}

// Search runs the query. Document types are ignored; indices are typeless.
func (e *Elastic) Search(ctx context.Context, req *Request) (*models.ResultSet, error) {
	body, err := json.Marshal(RenderDSL(req.Query))
	if err != nil {
		return nil, executionError("encode query: %v", err)
	}
	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(splitIndex(req.Index)...),
		e.es.Search.WithBody(bytes.NewReader(body)),
		e.es.Search.WithFrom(req.Query.Offset),
		e.es.Search.WithSize(req.Query.Limit),
	)
	if err != nil {
		return nil, executionError("search: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, executionError("search [%s]: %s", res.Status(), strings.TrimSpace(string(msg)))
	}
	return decodeSearchResponse(res.Body)
}

// WriteDocument indexes doc with an engine-assigned id.
func (e *Elastic) WriteDocument(ctx context.Context, index string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := e.es.Index(index, bytes.NewReader(body), e.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document: [%s]", res.Status())
	}
	return nil
}

// Close is a no-op; the HTTP transport has nothing to release.
func (e *Elastic) Close() error {
	return nil
}

// RenderDSL converts a built query into an Elasticsearch request body.
// Raw mappings are returned as-is.
func RenderDSL(q *query.Query) map[string]any {
	if q.IsRaw() {
		return q.Raw
	}
	if len(q.Should) == 1 {
		return map[string]any{"query": renderClause(q.Should[0])}
	}
	should := make([]any, 0, len(q.Should))
	for _, c := range q.Should {
		should = append(should, renderClause(c))
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"should": should},
		},
	}
}

func renderClause(c query.Clause) map[string]any {
	valueKey := "value"
	if c.Kind == models.KindMatch {
		valueKey = "query"
	}
	params := map[string]any{valueKey: c.Value}
	if c.Boost != 0 {
		params["boost"] = c.Boost
	}
	return map[string]any{
		string(c.Kind): map[string]any{c.Field: params},
	}
}

type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total json.RawMessage `json:"total"`
		Hits  []struct {
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func decodeSearchResponse(r io.Reader) (*models.ResultSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var resp searchResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, executionError("decode response: %v", err)
	}
	total, err := parseTotal(resp.Hits.Total)
	if err != nil {
		return nil, executionError("decode hits.total: %v", err)
	}
	rs := &models.ResultSet{
		Hits:     make([]models.Hit, 0, len(resp.Hits.Hits)),
		Total:    total,
		Took:     resp.Took,
		TimedOut: resp.TimedOut,
	}
	for _, h := range resp.Hits.Hits {
		hit := models.Hit{ID: h.ID, Fields: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		rs.Hits = append(rs.Hits, hit)
	}
	return rs, nil
}

// parseTotal accepts both the legacy numeric form and the {"value": n} object.
func parseTotal(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var obj struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, err
	}
	return obj.Value, nil
}

func splitIndex(index string) []string {
	var out []string
	for _, part := range strings.Split(index, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
