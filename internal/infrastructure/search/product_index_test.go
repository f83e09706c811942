package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

func newTestIndex(t *testing.T, h http.HandlerFunc) *ProductIndex {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewProductIndex(es, "products", helpers.NopLogger())
}

func TestSearch_ReturnsIDsInHitOrder(t *testing.T) {
	var body map[string]any
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/_search", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"b"},{"_id":"a"}]}}`))
	})

	ids, err := idx.Search(context.Background(), "oud", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)

	mm := body["query"].(map[string]any)["bool"].(map[string]any)["must"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "oud", mm["query"])
	assert.Equal(t, float64(5), body["size"])
}

func TestIndex_SendsDocument(t *testing.T) {
	var doc productDoc
	var path string
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&doc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	p := &entity.Product{
		ID: primitive.NewObjectID(), Name: "Oud Nights", Price: 4999, DiscountPrice: 3999, IsActive: true,
		Notes: entity.FragranceNotes{Top: []string{"saffron"}, Base: []string{"oud"}},
		Brand: &entity.Summary{Name: "Maison Noir"},
	}
	require.NoError(t, idx.Index(context.Background(), p))
	assert.Equal(t, "/products/_doc/"+p.ID.Hex(), path)
	assert.Equal(t, "Maison Noir", doc.Brand)
	assert.Equal(t, []string{"saffron", "oud"}, doc.Notes)
	assert.Equal(t, 3999.0, doc.Price)
}

func TestDelete_IgnoresMissing(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	})
	assert.NoError(t, idx.Delete(context.Background(), "missing"))
}

func TestBulk_CountsAccepted(t *testing.T) {
	idx := newTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400}}]}`))
	})
	n, err := idx.Bulk(context.Background(), []entity.Product{
		{ID: primitive.NewObjectID(), Name: "a"},
		{ID: primitive.NewObjectID(), Name: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
