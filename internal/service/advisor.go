package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/models"
)

// FallbackAdvice is stored when the advisor cannot produce anything.
const FallbackAdvice = "Meal logged. Keep your remaining meals balanced and stay hydrated."

// AdviceContext carries optional user context; nil or empty fields are left out of the prompt.
type AdviceContext struct {
	HealthGoal    string
	DishName      string
	DailyGoal     *float64
	ConsumedToday *float64
	MealsToday    *int
}

// AdvisoryClient produces one sentence of guidance. It never fails.
type AdvisoryClient interface {
	Advise(ctx context.Context, totals models.NutritionTotals, adviceCtx AdviceContext) string
}

const advisorSystemPrompt = "You are a nutritionist specializing in Tunisian cuisine."

// BuildAdvicePrompt renders the user prompt for the advisor.
func BuildAdvicePrompt(totals models.NutritionTotals, ac AdviceContext) string {
	var b strings.Builder
	b.WriteString("Provide ONE concise sentence of specific dietary advice for the rest of the day. ")
	b.WriteString("Be encouraging and practical.\n\n")

	if ac.HealthGoal != "" {
		fmt.Fprintf(&b, "User Goal: %s\n", ac.HealthGoal)
	}
	if ac.DishName != "" {
		fmt.Fprintf(&b, "Just ate: %s (%.1f calories)\n", ac.DishName, totals.Calories)
	} else {
		fmt.Fprintf(&b, "Just ate a meal of %.1f calories\n", totals.Calories)
	}
	fmt.Fprintf(&b, "Macros: %.1fg protein, %.1fg carbs, %.1fg fats\n", totals.Protein, totals.Carbs, totals.Fats)
	if ac.DailyGoal != nil {
		fmt.Fprintf(&b, "Daily calorie goal: %.0f\n", *ac.DailyGoal)
	}
	if ac.ConsumedToday != nil {
		fmt.Fprintf(&b, "Consumed earlier today: %.1f calories\n", *ac.ConsumedToday)
	}
	if ac.MealsToday != nil {
		fmt.Fprintf(&b, "Meals logged earlier today: %d\n", *ac.MealsToday)
	}
	if ac.DailyGoal != nil && ac.ConsumedToday != nil {
		remaining := *ac.DailyGoal - (*ac.ConsumedToday + totals.Calories)
		fmt.Fprintf(&b, "Remaining calories for today: %.1f\n", remaining)
	}
	b.WriteString("Give specific advice for the rest of the day.")
	return b.String()
}

// ChatAdvisoryClient generates advice through a chat completions provider (Groq or OpenRouter).
type ChatAdvisoryClient struct {
	chat *ChatClient
	log  *logger.Logger
}

func NewChatAdvisoryClient(cfg config.AdvisorConfig, log *logger.Logger) *ChatAdvisoryClient {
	return &ChatAdvisoryClient{
		chat: NewChatClient(cfg.Provider, cfg.ProviderConfig),
		log:  log.With("service", "ChatAdvisoryClient", "provider", cfg.Provider),
	}
}

func (a *ChatAdvisoryClient) Advise(ctx context.Context, totals models.NutritionTotals, ac AdviceContext) string {
	messages := []Message{
		{Role: "system", Content: advisorSystemPrompt},
		{Role: "user", Content: BuildAdvicePrompt(totals, ac)},
	}

	content, err := a.chat.Complete(ctx, messages, 0.7)
	if err != nil {
		a.log.Warn("advisor degraded to fallback", "error", err)
		return FallbackAdvice
	}
	advice := strings.TrimSpace(content)
	if advice == "" {
		a.log.Warn("advisor returned empty output, using fallback")
		return FallbackAdvice
	}
	return advice
}
