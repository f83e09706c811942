package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

const productMapping = `{
  "mappings": {
    "properties": {
      "name":          {"type": "text"},
      "slug":          {"type": "keyword"},
      "brand":         {"type": "text"},
      "category":      {"type": "text"},
      "notes":         {"type": "text"},
      "tags":          {"type": "text"},
      "gender":        {"type": "keyword"},
      "concentration": {"type": "keyword"},
      "price":         {"type": "double"},
      "is_active":     {"type": "boolean"},
      "updated_at":    {"type": "date"}
    }
  }
}`

// ProductIndex mirrors catalog products into an Elasticsearch index for full-text search.
type ProductIndex struct {
	es     *elasticsearch.Client
	index  string
	logger *logrus.Logger
}

func NewProductIndex(es *elasticsearch.Client, index string, logger *logrus.Logger) *ProductIndex {
	return &ProductIndex{es: es, index: index, logger: logger}
}

type productDoc struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	Notes         []string `json:"notes"`
	Tags          []string `json:"tags"`
	Gender        string   `json:"gender"`
	Concentration string   `json:"concentration,omitempty"`
	Price         float64  `json:"price"`
	IsActive      bool     `json:"is_active"`
	UpdatedAt     string   `json:"updated_at"`
}

func toDoc(p *entity.Product) productDoc {
	d := productDoc{
		ID:            p.ID.Hex(),
		Name:          p.Name,
		Slug:          p.Slug,
		Notes:         p.Notes.All(),
		Tags:          p.Tags,
		Gender:        p.Gender,
		Concentration: p.Concentration,
		Price:         p.EffectivePrice(),
		IsActive:      p.IsActive,
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.Brand != nil {
		d.Brand = p.Brand.Name
	}
	if p.Category != nil {
		d.Category = p.Category.Name
	}
	return d
}

// EnsureIndex creates the index with its mapping when missing.
func (x *ProductIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.es.Indices.Exists([]string{x.index}, x.es.Indices.Exists.WithContext(c))
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = x.es.Indices.Create(x.index,
		x.es.Indices.Create.WithContext(c),
		x.es.Indices.Create.WithBody(strings.NewReader(productMapping)),
	)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && !strings.Contains(readBody(res.Body), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", x.index, res.Status())
	}
	return nil
}

// Recreate drops and recreates the index.
func (x *ProductIndex) Recreate(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.es.Indices.Delete([]string{x.index},
		x.es.Indices.Delete.WithContext(c),
		x.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return err
	}
	_ = res.Body.Close()
	return x.EnsureIndex(ctx)
}

func (x *ProductIndex) Index(ctx context.Context, p *entity.Product) error {
	b, err := json.Marshal(toDoc(p))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.index, DocumentID: p.ID.Hex(), Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index product %s: %s", p.ID.Hex(), res.Status())
	}
	return nil
}

// Delete removes a product document. A missing document is not an error.
func (x *ProductIndex) Delete(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{Index: x.index, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete product %s: %s", id, res.Status())
	}
	return nil
}

// Bulk indexes products in one request and returns how many were accepted.
func (x *ProductIndex) Bulk(ctx context.Context, products []entity.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		meta := map[string]any{"index": map[string]any{"_index": x.index, "_id": products[i].ID.Hex()}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(toDoc(&products[i])); err != nil {
			return 0, err
		}
	}

	res, err := x.es.Bulk(bytes.NewReader(buf.Bytes()), x.es.Bulk.WithContext(ctx), x.es.Bulk.WithRefresh("true"))
	if err != nil {
		return 0, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return 0, fmt.Errorf("bulk index: %s", res.Status())
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	ok := 0
	for _, it := range parsed.Items {
		for _, r := range it {
			if r.Status < 300 {
				ok++
			}
		}
	}
	if parsed.Errors && x.logger != nil {
		x.logger.WithField("failed", len(products)-ok).Warn("bulk index had item errors")
	}
	return ok, nil
}

// Search runs a multi_match over active products and returns ids by relevance.
func (x *ProductIndex) Search(ctx context.Context, q string, size int) ([]string, error) {
	query := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     q,
						"fields":    []string{"name^3", "brand^2", "notes", "tags"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{"term": map[string]any{"is_active": true}},
			},
		},
		"size":    size,
		"_source": false,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.es.Search(x.es.Search.WithContext(c), x.es.Search.WithIndex(x.index), x.es.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", x.index, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(b)
}
