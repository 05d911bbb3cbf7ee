package search

import "github.com/hyperjump/elastipass/internal/models"

// Shape flattens engine hits into records. Every record carries the hit's fields plus "score"
// and "id", which replace any stored field of the same name.
func Shape(rs *models.ResultSet) *models.Response {
	results := make([]models.Record, 0, len(rs.Hits))
	for _, h := range rs.Hits {
		rec := make(models.Record, len(h.Fields)+2)
		for k, v := range h.Fields {
			rec[k] = v
		}
		rec["score"] = h.Score
		rec["id"] = h.ID
		results = append(results, rec)
	}
	took, timedOut := rs.Took, rs.TimedOut
	return &models.Response{
		Results:  results,
		Total:    rs.Total,
		Took:     &took,
		TimedOut: &timedOut,
	}
}
