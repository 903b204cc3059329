package integration

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/api"
	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/router"
	"github.com/pageza/nutrisnap/backend/internal/service"
	"github.com/pageza/nutrisnap/backend/internal/testhelpers"
)

var mealPhoto = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

const ninjasBody = `{"items":[
	{"name":"couscous","calories":200,"serving_size_g":150,"protein_g":10,"carbohydrates_total_g":20,"fat_total_g":5},
	{"name":"lamb","calories":150,"serving_size_g":50,"protein_g":5,"carbohydrates_total_g":15,"fat_total_g":3}
]}`

// chatProvider fakes an OpenAI-compatible endpoint and records user prompts.
type chatProvider struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (p *chatProvider) serve(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req service.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if last := req.Messages[len(req.Messages)-1]; last.Role == "user" {
			if s, ok := last.Content.(string); ok {
				p.mu.Lock()
				p.prompts = append(p.prompts, s)
				p.mu.Unlock()
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": p.reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (p *chatProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

func setupApp(t *testing.T, advisor *chatProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	db := testhelpers.SetupTestDatabase(t)

	vision := (&chatProvider{reply: "  Couscous with lamb and vegetables\n"}).serve(t)
	advice := advisor.serve(t)
	ninjas := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ninjasBody))
	}))
	t.Cleanup(ninjas.Close)

	provider := func(url string) config.ProviderConfig {
		return config.ProviderConfig{APIKey: "k", APIURL: url, Model: "m", Timeout: 5 * time.Second}
	}

	meals := service.NewGormMealStore(db)
	profiles := service.NewProfileService(db, 2500)
	council := service.NewCouncil(service.CouncilDeps{
		Vision:    service.NewChatVisionClient(provider(vision.URL), 0),
		Nutrition: service.NewCalorieNinjasClient(provider(ninjas.URL), log),
		Advisor:   service.NewChatAdvisoryClient(config.AdvisorConfig{Provider: "groq", ProviderConfig: provider(advice.URL)}, log),
		Store:     meals,
		Profiles:  profiles,
	}, service.CouncilConfig{Location: time.UTC}, log)

	return router.SetupRouter(log, nil, router.Handlers{
		Health:    api.NewHealthHandler(db),
		Meals:     api.NewMealHandler(council, meals, 0, time.UTC, nil),
		Dashboard: api.NewDashboardHandler(service.NewDashboardService(meals, profiles, 2500, time.UTC)),
		Profiles:  api.NewProfileHandler(profiles),
	})
}

func send(t *testing.T, r http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMealFlow(t *testing.T) {
	advisor := &chatProvider{reply: "Have a light salad for dinner."}
	r := setupApp(t, advisor)

	w := send(t, r, http.MethodPut, "/api/v1/users/test_user/profile", map[string]interface{}{
		"daily_calorie_goal": 2000,
		"health_goal":        "gain_muscle",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Phase one: the photo becomes a description for the user to correct.
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("image", "lunch.png")
	require.NoError(t, err)
	_, _ = fw.Write(mealPhoto)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var analysis struct {
		DetectedText string `json:"detected_text"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analysis))
	assert.Equal(t, "Couscous with lamb and vegetables", analysis.DetectedText)

	// Phase two, twice.
	for i := 0; i < 2; i++ {
		w = send(t, r, http.MethodPost, "/api/v1/meals", map[string]string{
			"user_id":       "test_user",
			"verified_text": analysis.DetectedText + ", small portion",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var meal struct {
			DishName  string `json:"dish_name"`
			AIAdvice  string `json:"ai_advice"`
			Nutrition struct {
				Calories float64 `json:"calories"`
				Protein  float64 `json:"protein"`
				Carbs    float64 `json:"carbs"`
				Fats     float64 `json:"fats"`
			} `json:"nutrition"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meal))
		assert.Equal(t, "Couscous with lamb and vegetables", meal.DishName)
		assert.Equal(t, "Have a light salad for dinner.", meal.AIAdvice)
		assert.Equal(t, 350.0, meal.Nutrition.Calories)
		assert.Equal(t, 15.0, meal.Nutrition.Protein)
		assert.Equal(t, 35.0, meal.Nutrition.Carbs)
		assert.Equal(t, 8.0, meal.Nutrition.Fats)
	}

	prompt := advisor.lastPrompt()
	assert.Contains(t, prompt, "User Goal: gain_muscle")
	assert.Contains(t, prompt, "Consumed earlier today: 350.0 calories")
	assert.Contains(t, prompt, "Remaining calories for today: 1300.0")

	w = send(t, r, http.MethodGet, "/api/v1/dashboard/test_user", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash api.DashboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dash))
	assert.Equal(t, 2000.0, dash.DailyGoal)
	assert.Equal(t, 700.0, dash.TotalConsumed)
	assert.Equal(t, 1300.0, dash.Remaining)
	assert.Equal(t, 2, dash.MealsToday)

	w = send(t, r, http.MethodGet, "/api/v1/users/test_user/meals?date="+time.Now().UTC().Format("2006-01-02"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, strings.Count(w.Body.String(), `"meal_id"`))
}

func TestAnalyze_RejectsNonImage(t *testing.T) {
	r := setupApp(t, &chatProvider{reply: "unused"})

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("just some text, not a photo"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"category":"invalid_input"`)
}
