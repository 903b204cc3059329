package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/models"
)

// NutritionClient turns a verified meal description into itemized nutrients.
// Zero items is a valid answer.
type NutritionClient interface {
	Quantify(ctx context.Context, verifiedText string) ([]models.NutritionItem, error)
}

const (
	fieldCalories = "calories"
	fieldProtein  = "protein_g"
	fieldCarbs    = "carbohydrates_total_g"
	fieldFat      = "fat_total_g"
	fieldServing  = "serving_size_g"
)

// CalorieNinjasClient queries the CalorieNinjas natural-language nutrition API.
type CalorieNinjasClient struct {
	log    *logger.Logger
	apiKey string
	apiURL string
	client *http.Client
}

func NewCalorieNinjasClient(cfg config.ProviderConfig, log *logger.Logger) *CalorieNinjasClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CalorieNinjasClient{
		log:    log.With("service", "CalorieNinjasClient"),
		apiKey: cfg.APIKey,
		apiURL: cfg.APIURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *CalorieNinjasClient) Quantify(ctx context.Context, verifiedText string) ([]models.NutritionItem, error) {
	query := strings.TrimSpace(verifiedText)
	if query == "" {
		return nil, invalidInput("verified_text", "must not be empty")
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid nutrition API URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, unavailable("calorieninjas", 0, fmt.Errorf("failed to send request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("calorieninjas", resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailable("calorieninjas", resp.StatusCode, fmt.Errorf("API request failed: %s", truncate(string(body), 200)))
	}

	return c.parseItems(body)
}

// parseItems reads the loosely typed provider payload. Required keys must be
// present; their values are coerced to non-negative finite numbers.
func (c *CalorieNinjasClient) parseItems(body []byte) ([]models.NutritionItem, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, schemaError("calorieninjas", fmt.Errorf("failed to decode response: %w", err))
	}
	rawItems, ok := top["items"]
	if !ok || string(rawItems) == "null" {
		return nil, schemaError("calorieninjas", fmt.Errorf("response has no items array"))
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(rawItems, &entries); err != nil {
		return nil, schemaError("calorieninjas", fmt.Errorf("items is not an array of objects: %w", err))
	}

	items := make([]models.NutritionItem, 0, len(entries))
	for i, entry := range entries {
		for _, key := range []string{fieldCalories, fieldProtein, fieldCarbs, fieldFat} {
			if _, ok := entry[key]; !ok {
				return nil, schemaError("calorieninjas", fmt.Errorf("item %d is missing %s", i, key))
			}
		}

		var name string
		if raw, ok := entry["name"]; ok {
			_ = json.Unmarshal(raw, &name)
		}

		item := models.NutritionItem{
			Name:         name,
			ServingSizeG: c.number(entry, fieldServing, name),
			Nutrition: models.NutritionTotals{
				Calories: c.number(entry, fieldCalories, name),
				Protein:  c.number(entry, fieldProtein, name),
				Carbs:    c.number(entry, fieldCarbs, name),
				Fats:     c.number(entry, fieldFat, name),
			},
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *CalorieNinjasClient) number(entry map[string]json.RawMessage, key, item string) float64 {
	raw, ok := entry[key]
	if !ok {
		return 0
	}
	v, ok := coerceNumber(raw)
	if !ok {
		c.log.Warn("coerced nutrient value to zero", "item", item, "field", key, "raw", string(raw))
		return 0
	}
	return v
}

// coerceNumber accepts JSON numbers and numeric strings. It reports false for
// anything else, including null, or for negative or non-finite values.
func coerceNumber(raw json.RawMessage) (float64, bool) {
	if strings.TrimSpace(string(raw)) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// CachedNutritionClient memoises successful lookups in Redis.
type CachedNutritionClient struct {
	next  NutritionClient
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedNutritionClient(next NutritionClient, rdb *redis.Client, ttl time.Duration, log *logger.Logger) *CachedNutritionClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedNutritionClient{
		next:  next,
		redis: rdb,
		ttl:   ttl,
		log:   log.With("service", "CachedNutritionClient"),
	}
}

// nutritionCacheKey normalises case and whitespace so trivially different
// spellings share an entry.
func nutritionCacheKey(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := blake2b.Sum256([]byte(norm))
	return fmt.Sprintf("nutrition:items:%s", hex.EncodeToString(sum[:]))
}

func (c *CachedNutritionClient) Quantify(ctx context.Context, verifiedText string) ([]models.NutritionItem, error) {
	if strings.TrimSpace(verifiedText) == "" {
		return nil, invalidInput("verified_text", "must not be empty")
	}
	key := nutritionCacheKey(verifiedText)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var items []models.NutritionItem
		if err := json.Unmarshal(data, &items); err == nil {
			c.log.Debug("nutrition cache hit", "key", key)
			return items, nil
		}
		c.log.Warn("discarding corrupt nutrition cache entry", "key", key)
	case err != redis.Nil:
		c.log.Warn("nutrition cache read failed", "error", err)
	}

	items, err := c.next.Quantify(ctx, verifiedText)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("nutrition cache write failed", "error", err)
		}
	}
	return items, nil
}
