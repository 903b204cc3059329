package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pageza/nutrisnap/backend/internal/models"
)

// Aggregate sums item nutrients in order. Non-finite or negative values count
// as zero, so the result is never negative.
func Aggregate(items []models.NutritionItem) models.NutritionTotals {
	var total models.NutritionTotals
	for _, item := range items {
		total = total.Add(sanitize(item.Nutrition))
	}
	return total
}

// Total folds the nutrition of stored meals.
func Total(meals []models.MealLog) models.NutritionTotals {
	var total models.NutritionTotals
	for _, m := range meals {
		total = total.Add(sanitize(m.Nutrition))
	}
	return total
}

func sanitize(t models.NutritionTotals) models.NutritionTotals {
	return models.NutritionTotals{
		Calories: nonNegative(t.Calories),
		Protein:  nonNegative(t.Protein),
		Carbs:    nonNegative(t.Carbs),
		Fats:     nonNegative(t.Fats),
	}
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// UnnamedMeal is shown when nothing usable can be derived from the text.
const UnnamedMeal = "Unnamed meal"

const maxDishNameRunes = 80

// DishName takes the first clause of the verified text as a short label.
func DishName(verifiedText string) string {
	text := strings.TrimSpace(verifiedText)
	if text == "" {
		return UnnamedMeal
	}

	name := text
	if i := strings.IndexAny(text, ",;(\n"); i >= 0 {
		if clause := strings.TrimSpace(text[:i]); clause != "" {
			name = clause
		}
	}

	if utf8.RuneCountInString(name) > maxDishNameRunes {
		runes := []rune(name)
		name = strings.TrimSpace(string(runes[:maxDishNameRunes-1])) + "…"
	}
	return name
}
