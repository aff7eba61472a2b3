package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tripmate/internal/config"
	"tripmate/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// ElasticsearchClient индексирует открытые планы для поиска попутчиков
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// planDocument - документ плана в индексе
type planDocument struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Destination     string    `json:"destination"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	Purpose         string    `json:"purpose"`
	BudgetRange     string    `json:"budget_range"`
	Description     string    `json:"description"`
	MaxParticipants int       `json:"max_participants"`
	Status          string    `json:"status"`
	JoinDeadline    time.Time `json:"join_deadline"`
	CreatedAt       time.Time `json:"created_at"`
}

func newPlanDocument(p *models.TravelPlan) planDocument {
	return planDocument{
		ID:              p.ID,
		UserID:          p.UserID,
		Destination:     p.Destination,
		StartDate:       p.StartDate.Format(models.DateLayout),
		EndDate:         p.EndDate.Format(models.DateLayout),
		Purpose:         p.Purpose,
		BudgetRange:     p.BudgetRange,
		Description:     p.Description,
		MaxParticipants: p.MaxParticipants,
		Status:          p.Status,
		JoinDeadline:    p.JoinDeadline,
		CreatedAt:       p.CreatedAt,
	}
}

func (d planDocument) plan() models.TravelPlan {
	start, _ := time.Parse(models.DateLayout, d.StartDate)
	end, _ := time.Parse(models.DateLayout, d.EndDate)
	return models.TravelPlan{
		ID:              d.ID,
		UserID:          d.UserID,
		Destination:     d.Destination,
		StartDate:       start,
		EndDate:         end,
		Purpose:         d.Purpose,
		BudgetRange:     d.BudgetRange,
		Description:     d.Description,
		MaxParticipants: d.MaxParticipants,
		Status:          d.Status,
		JoinDeadline:    d.JoinDeadline,
		CreatedAt:       d.CreatedAt,
	}
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	keyword := map[string]interface{}{"type": "keyword"}
	mapping := map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis": map[string]interface{}{
				"normalizer": map[string]interface{}{
					"lowercase": map[string]interface{}{
						"type":   "custom",
						"filter": []string{"lowercase"},
					},
				},
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":      map[string]interface{}{"type": "long"},
				"user_id": map[string]interface{}{"type": "long"},
				"destination": map[string]interface{}{
					"type": "text",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{
							"type":         "keyword",
							"ignore_above": 256,
							"normalizer":   "lowercase",
						},
					},
				},
				"start_date":       map[string]interface{}{"type": "date", "format": "yyyy-MM-dd"},
				"end_date":         map[string]interface{}{"type": "date", "format": "yyyy-MM-dd"},
				"purpose":          keyword,
				"budget_range":     keyword,
				"status":           keyword,
				"description":      map[string]interface{}{"type": "text"},
				"max_participants": map[string]interface{}{"type": "integer"},
				"join_deadline":    map[string]interface{}{"type": "date"},
				"created_at":       map[string]interface{}{"type": "date"},
			},
		},
	}

	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  strings.NewReader(string(mappingJSON)),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// SearchPlans ищет открытые планы других пользователей
func (c *ElasticsearchClient) SearchPlans(ctx context.Context, filter models.PlanSearchFilter) ([]models.TravelPlan, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	searchRequest := map[string]interface{}{
		"query": buildSearchQuery(filter),
		"sort": []map[string]interface{}{
			{"start_date": map[string]interface{}{"order": "asc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		},
		"size": limit,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  strings.NewReader(string(searchJSON)),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source planDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	plans := make([]models.TravelPlan, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		plans[i] = hit.Source.plan()
	}
	return plans, nil
}

// buildSearchQuery строит запрос с теми же условиями, что и поиск в Postgres
func buildSearchQuery(filter models.PlanSearchFilter) map[string]interface{} {
	from := filter.Today
	if filter.StartDate != nil && filter.StartDate.After(from) {
		from = *filter.StartDate
	}

	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"status": models.PlanStatusOpen}},
		{"range": map[string]interface{}{
			"start_date": map[string]interface{}{"gte": from.Format(models.DateLayout)},
		}},
	}

	if dest := strings.TrimSpace(filter.Destination); dest != "" {
		filters = append(filters, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"destination.keyword": map[string]interface{}{
					"value":            "*" + strings.ToLower(dest) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	if filter.BudgetRange != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"budget_range": filter.BudgetRange},
		})
	}
	if filter.Purpose != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"purpose": filter.Purpose},
		})
	}

	return map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": filters,
			"must_not": []map[string]interface{}{
				{"term": map[string]interface{}{"user_id": filter.ExcludeUserID}},
			},
		},
	}
}

// IndexPlan индексирует план
func (c *ElasticsearchClient) IndexPlan(ctx context.Context, plan *models.TravelPlan) error {
	docJSON, err := json.Marshal(newPlanDocument(plan))
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(plan.ID, 10),
		Body:       strings.NewReader(string(docJSON)),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index plan: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// DeletePlan удаляет план из индекса
func (c *ElasticsearchClient) DeletePlan(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// BulkIndexPlans индексирует пачку планов одним запросом _bulk
func (c *ElasticsearchClient) BulkIndexPlans(ctx context.Context, plans []models.TravelPlan) error {
	if len(plans) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range plans {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_id": strconv.FormatInt(plans[i].ID, 10)},
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk meta: %w", err)
		}
		if err := enc.Encode(newPlanDocument(&plans[i])); err != nil {
			return fmt.Errorf("failed to encode plan %d: %w", plans[i].ID, err)
		}
	}

	req := esapi.BulkRequest{
		Index: c.config.Index,
		Body:  &buf,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to execute bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk error: %s", res.String())
	}

	var response struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if response.Errors {
		var failed []string
		for _, item := range response.Items {
			for _, result := range item {
				if result.Status >= 300 {
					failed = append(failed, result.ID)
				}
			}
		}
		return fmt.Errorf("bulk indexing failed for plans %s", strings.Join(failed, ","))
	}
	return nil
}

// RecreateIndex удаляет индекс и создает его заново с актуальным маппингом
func (c *ElasticsearchClient) RecreateIndex(ctx context.Context) error {
	req := esapi.IndicesDeleteRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index error: %s", res.String())
	}

	return c.ensureIndex(ctx)
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
