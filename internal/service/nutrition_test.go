package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/models"
)

func ninjasServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.NotEmpty(t, r.URL.Query().Get("query"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCalorieNinjasQuantify(t *testing.T) {
	srv, hits := ninjasServer(t, http.StatusOK, `{"items":[
		{"name":"chickpeas","calories":200,"serving_size_g":150,"protein_g":10,"carbohydrates_total_g":20,"fat_total_g":5,"sugar_g":2},
		{"name":"bread","calories":150,"serving_size_g":50,"protein_g":5,"carbohydrates_total_g":15,"fat_total_g":3}
	]}`)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

	items, err := client.Quantify(context.Background(), "chickpea soup 300ml and bread")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "chickpeas", items[0].Name)
	assert.Equal(t, 150.0, items[0].ServingSizeG)
	assert.Equal(t, models.NutritionTotals{Calories: 350, Protein: 15, Carbs: 35, Fats: 8}, Aggregate(items))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCalorieNinjasZeroItems(t *testing.T) {
	srv, _ := ninjasServer(t, http.StatusOK, `{"items":[]}`)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

	items, err := client.Quantify(context.Background(), "just water")

	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCalorieNinjasCoercesBadValues(t *testing.T) {
	srv, _ := ninjasServer(t, http.StatusOK, `{"items":[
		{"name":"mystery","calories":"120.5","protein_g":-3,"carbohydrates_total_g":"lots","fat_total_g":null}
	]}`)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

	items, err := client.Quantify(context.Background(), "mystery stew")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NutritionTotals{Calories: 120.5}, items[0].Nutrition)
}

func TestCalorieNinjasNullValuesAreWarned(t *testing.T) {
	srv, _ := ninjasServer(t, http.StatusOK, `{"items":[
		{"name":"mystery","calories":null,"protein_g":"abc","carbohydrates_total_g":12,"fat_total_g":4}
	]}`)
	core, logs := observer.New(zapcore.WarnLevel)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	items, err := client.Quantify(context.Background(), "mystery stew")

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.NutritionTotals{Carbs: 12, Fats: 4}, items[0].Nutrition)

	warned := logs.FilterMessage("coerced nutrient value to zero")
	require.Equal(t, 2, warned.Len())
	fields := map[string]bool{}
	for _, entry := range warned.All() {
		fields[entry.ContextMap()["field"].(string)] = true
	}
	assert.True(t, fields["calories"])
	assert.True(t, fields["protein_g"])
}

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`12.5`, 12.5, true},
		{`"7"`, 7, true},
		{`" 3.25 "`, 3.25, true},
		{`null`, 0, false},
		{` null `, 0, false},
		{`"abc"`, 0, false},
		{`-1`, 0, false},
		{`true`, 0, false},
	}
	for _, tt := range tests {
		got, ok := coerceNumber([]byte(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestCalorieNinjasSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no items key", `{"foods":[]}`},
		{"null items", `{"items":null}`},
		{"items not an array", `{"items":"soup"}`},
		{"missing calories", `{"items":[{"name":"x","protein_g":1,"carbohydrates_total_g":1,"fat_total_g":1}]}`},
		{"missing fat", `{"items":[{"name":"x","calories":1,"protein_g":1,"carbohydrates_total_g":1}]}`},
		{"not json", `<html>oops</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := ninjasServer(t, http.StatusOK, tt.body)
			client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

			_, err := client.Quantify(context.Background(), "soup")
			assert.ErrorIs(t, err, ErrUpstreamSchema)
		})
	}
}

func TestCalorieNinjasUnavailable(t *testing.T) {
	srv, _ := ninjasServer(t, http.StatusBadGateway, `upstream down`)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

	_, err := client.Quantify(context.Background(), "soup")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestCalorieNinjasTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := providerConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewCalorieNinjasClient(cfg, logger.NewNop())

	_, err := client.Quantify(context.Background(), "soup")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCalorieNinjasEmptyTextMakesNoCall(t *testing.T) {
	srv, hits := ninjasServer(t, http.StatusOK, `{"items":[]}`)
	client := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())

	_, err := client.Quantify(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestNutritionCacheKeyNormalises(t *testing.T) {
	assert.Equal(t, nutritionCacheKey("Chickpea  Soup"), nutritionCacheKey(" chickpea soup\n"))
	assert.NotEqual(t, nutritionCacheKey("chickpea soup"), nutritionCacheKey("lentil soup"))
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set, skipping redis test")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return rdb
}

func TestCachedNutritionClient(t *testing.T) {
	rdb := testRedis(t)
	srv, hits := ninjasServer(t, http.StatusOK, `{"items":[{"name":"egg","calories":78,"protein_g":6,"carbohydrates_total_g":0.5,"fat_total_g":5}]}`)
	inner := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())
	client := NewCachedNutritionClient(inner, rdb, time.Minute, logger.NewNop())

	first, err := client.Quantify(context.Background(), "Boiled egg")
	require.NoError(t, err)
	second, err := client.Quantify(context.Background(), "boiled   EGG")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCachedNutritionClientBypassesBrokenRedis(t *testing.T) {
	srv, hits := ninjasServer(t, http.StatusOK, `{"items":[]}`)
	inner := NewCalorieNinjasClient(providerConfig(srv.URL), logger.NewNop())
	// Nothing listens on this port, so every cache call fails fast.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	client := NewCachedNutritionClient(inner, rdb, time.Minute, logger.NewNop())

	items, err := client.Quantify(context.Background(), "just water")

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}
