package models

import (
	"time"
)

// HealthGoal steers the tone of generated advice.
type HealthGoal string

const (
	GoalGainMuscle HealthGoal = "gain_muscle"
	GoalLoseWeight HealthGoal = "lose_weight"
	GoalMaintain   HealthGoal = "maintain"
	GoalBulk       HealthGoal = "bulk"
	GoalCut        HealthGoal = "cut"
)

// Valid reports whether g is one of the known goals.
func (g HealthGoal) Valid() bool {
	switch g {
	case GoalGainMuscle, GoalLoseWeight, GoalMaintain, GoalBulk, GoalCut:
		return true
	}
	return false
}

type UserProfile struct {
	UserID           string     `gorm:"size:64;primaryKey" json:"user_id"`
	Username         string     `gorm:"size:50" json:"username"`
	DailyCalorieGoal int        `gorm:"not null;default:2500" json:"daily_calorie_goal"`
	HealthGoal       HealthGoal `gorm:"size:20;not null;default:'maintain'" json:"health_goal"`
	HeightCm         *float64   `gorm:"type:float" json:"height_cm,omitempty"`
	WeightKg         *float64   `gorm:"type:float" json:"weight_kg,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
