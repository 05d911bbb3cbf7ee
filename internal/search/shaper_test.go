package search

import (
	"encoding/json"
	"testing"

	"github.com/hyperjump/elastipass/internal/models"
)

func TestShape(t *testing.T) {
	rs := &models.ResultSet{
		Hits: []models.Hit{
			{ID: "a1", Score: 1.5, Fields: map[string]any{"email": "a@b.c", "id": "stored", "score": "stored"}},
			{ID: "a2", Score: 0.5},
		},
		Total:    2,
		Took:     4,
		TimedOut: false,
	}
	resp := Shape(rs)
	if len(resp.Results) != 2 || resp.Total != 2 || *resp.Took != 4 || *resp.TimedOut {
		t.Fatalf("got %+v", resp)
	}
	first := resp.Results[0]
	if first["id"] != "a1" || first["score"] != 1.5 || first["email"] != "a@b.c" {
		t.Errorf("injected values should win: %v", first)
	}
	if len(resp.Results[1]) != 2 {
		t.Errorf("hit without fields should carry only id and score: %v", resp.Results[1])
	}
	if rs.Hits[0].Fields["id"] != "stored" {
		t.Error("Shape must not modify the result set")
	}
}

func TestShape_emptyIsNotNull(t *testing.T) {
	resp := Shape(&models.ResultSet{})
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"results":[],"total":0,"took":0,"timed_out":false}`; string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
