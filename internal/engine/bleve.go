package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/elastipass/internal/models"
	"github.com/hyperjump/elastipass/internal/query"
)

const batchSize = 500

// Bleve runs queries against an embedded on-disk index.
type Bleve struct {
	index bleve.Index
}

// NewBleve creates or opens a Bleve index at path.
// An existing index keeps the mapping it was created with; remove the directory to pick up
// mapping changes.
func NewBleve(path string) (*Bleve, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Bleve{index: index}, nil
	}
	index, err := bleve.New(path, accountMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Bleve{index: index}, nil
}

// accountMapping indexes email and username twice: analyzed under their own name and
// verbatim under "<name>.raw".
func accountMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()
	for _, name := range []string{"email", "username"} {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = standard.Name
		raw := bleve.NewKeywordFieldMapping()
		raw.Name = name + ".raw"
		raw.Store = false
		doc.AddFieldMappingsAt(name, text, raw)
	}
	im.DefaultMapping = doc
	return im
}

// Search runs the query. Index and document type are ignored: the embedded index holds a
// single account collection.
func (b *Bleve) Search(ctx context.Context, req *Request) (*models.ResultSet, error) {
	q, err := toBleveQuery(req.Query)
	if err != nil {
		return nil, err
	}
	sr := bleve.NewSearchRequestOptions(q, req.Query.Limit, req.Query.Offset, false)
	sr.Fields = []string{"*"}
	res, err := b.index.SearchInContext(ctx, sr)
	if err != nil {
		return nil, executionError("bleve search: %v", err)
	}
	rs := &models.ResultSet{
		Hits:  make([]models.Hit, 0, len(res.Hits)),
		Total: int64(res.Total),
		Took:  res.Took.Milliseconds(),
	}
	for _, h := range res.Hits {
		rs.Hits = append(rs.Hits, models.Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return rs, nil
}

// IndexDocuments stores docs in batches.
func (b *Bleve) IndexDocuments(ctx context.Context, docs []Document) error {
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			return fmt.Errorf("batch document %s: %w", doc.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to index batch: %w", err)
		}
	}
	return nil
}

// DocCount returns the number of indexed accounts.
func (b *Bleve) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *Bleve) Close() error {
	return b.index.Close()
}

func toBleveQuery(q *query.Query) (blevequery.Query, error) {
	if q.IsRaw() {
		return parseRaw(q.Raw)
	}
	if len(q.Should) == 1 {
		return clauseQuery(q.Should[0]), nil
	}
	parts := make([]blevequery.Query, 0, len(q.Should))
	for _, c := range q.Should {
		parts = append(parts, clauseQuery(c))
	}
	return bleve.NewDisjunctionQuery(parts...), nil
}

func clauseQuery(c query.Clause) blevequery.Query {
	var q interface {
		blevequery.FieldableQuery
		blevequery.BoostableQuery
	}
	switch c.Kind {
	case models.KindMatch:
		q = bleve.NewMatchQuery(c.Value)
	case models.KindFuzzy:
		q = bleve.NewFuzzyQuery(c.Value)
	case models.KindRegexp:
		q = bleve.NewRegexpQuery(c.Value)
	case models.KindWildcard:
		q = bleve.NewWildcardQuery(c.Value)
	default:
		q = bleve.NewTermQuery(c.Value)
	}
	q.SetField(c.Field)
	if c.Boost != 0 {
		q.SetBoost(c.Boost)
	}
	return q
}

// parseRaw reads a mapping in Bleve's JSON query syntax. A top-level "query" object is
// unwrapped so request bodies shaped like {"query": {...}} work unchanged.
func parseRaw(raw map[string]any) (blevequery.Query, error) {
	body := any(raw)
	if inner, ok := raw["query"].(map[string]any); ok {
		body = inner
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, executionError("encode raw query: %v", err)
	}
	q, err := blevequery.ParseQuery(data)
	if err != nil {
		return nil, executionError("parse raw query: %v", err)
	}
	return q, nil
}
