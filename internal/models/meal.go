package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NutritionTotals is the four-field nutrient sum used for items, meals and days.
type NutritionTotals struct {
	Calories float64 `gorm:"type:float;not null;default:0" json:"calories"`
	Protein  float64 `gorm:"type:float;not null;default:0" json:"protein"`
	Carbs    float64 `gorm:"type:float;not null;default:0" json:"carbs"`
	Fats     float64 `gorm:"type:float;not null;default:0" json:"fats"`
}

// Add returns the field-wise sum of t and o.
func (t NutritionTotals) Add(o NutritionTotals) NutritionTotals {
	return NutritionTotals{
		Calories: t.Calories + o.Calories,
		Protein:  t.Protein + o.Protein,
		Carbs:    t.Carbs + o.Carbs,
		Fats:     t.Fats + o.Fats,
	}
}

// NutritionItem is one food recognised by the nutrition provider.
type NutritionItem struct {
	Name         string          `json:"name"`
	ServingSizeG float64         `json:"serving_size_g"`
	Nutrition    NutritionTotals `json:"nutrition"`
}

// NutritionItems is stored as a JSON array in a text column
type NutritionItems []NutritionItem

// Value implements the driver.Valuer interface
func (a NutritionItems) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *NutritionItems) Scan(value interface{}) error {
	if value == nil {
		*a = NutritionItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for NutritionItems: %T", value)
	}

	return json.Unmarshal(bytes, a)
}

// MealLog is a persisted, verified meal. Rows are written once and never updated.
type MealLog struct {
	ID             uuid.UUID       `gorm:"type:varchar(36);primaryKey" json:"meal_id"`
	UserID         string          `gorm:"size:64;not null;index:idx_meal_logs_user_logged,priority:1" json:"user_id"`
	DishName       string          `gorm:"size:255;not null" json:"dish_name"`
	VerifiedText   string          `gorm:"type:text;not null" json:"verified_text"`
	Nutrition      NutritionTotals `gorm:"embedded" json:"nutrition"`
	Items          NutritionItems  `gorm:"type:text;not null" json:"items"`
	AIAdvice       string          `gorm:"type:text" json:"ai_advice"`
	ImageReference string          `gorm:"size:512" json:"image_reference,omitempty"`
	Timestamp      time.Time       `gorm:"column:logged_at;not null;index:idx_meal_logs_user_logged,priority:2" json:"timestamp"`
}

func (MealLog) TableName() string {
	return "meal_logs"
}
