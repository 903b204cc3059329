package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/models"
)

// State is a step of the meal pipeline.
type State string

const (
	StateReceived             State = "received"
	StateVisionPending        State = "vision_pending"
	StateAwaitingVerification State = "awaiting_verification"
	StateNutritionPending     State = "nutrition_pending"
	StateAggregated           State = "aggregated"
	StateAdvisoryPending      State = "advisory_pending"
	StatePersisted            State = "persisted"
)

var tracer = otel.Tracer("github.com/pageza/nutrisnap/backend/internal/service")

// CouncilDeps are the collaborators of the pipeline. Profiles and Images may be nil.
type CouncilDeps struct {
	Vision    VisionClient
	Nutrition NutritionClient
	Advisor   AdvisoryClient
	Store     MealStore
	Profiles  IProfileService
	Images    ImageArchive
}

// CouncilConfig holds per-provider deadlines and the retry knob.
type CouncilConfig struct {
	VisionTimeout        time.Duration
	NutritionTimeout     time.Duration
	AdviceTimeout        time.Duration
	StoreTimeout         time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	MaxImageBytes        int64
	DefaultDailyGoal     int
	Location             *time.Location
}

func (c *CouncilConfig) setDefaults() {
	if c.VisionTimeout <= 0 {
		c.VisionTimeout = 15 * time.Second
	}
	if c.NutritionTimeout <= 0 {
		c.NutritionTimeout = 10 * time.Second
	}
	if c.AdviceTimeout <= 0 {
		c.AdviceTimeout = 15 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = DefaultMaxImageBytes
	}
	if c.DefaultDailyGoal <= 0 {
		c.DefaultDailyGoal = 2500
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

// Council runs the two request phases: Analyze produces a description for the
// user to correct, LogMeal turns the corrected text into a stored meal.
// Nothing is kept between the phases.
type Council struct {
	deps     CouncilDeps
	cfg      CouncilConfig
	log      *logger.Logger
	observer func(context.Context, State)
	now      func() time.Time
}

type CouncilOption func(*Council)

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(context.Context, State)) CouncilOption {
	return func(c *Council) { c.observer = fn }
}

func WithClock(now func() time.Time) CouncilOption {
	return func(c *Council) { c.now = now }
}

func NewCouncil(deps CouncilDeps, cfg CouncilConfig, log *logger.Logger, opts ...CouncilOption) *Council {
	cfg.setDefaults()
	c := &Council{
		deps: deps,
		cfg:  cfg,
		log:  log.With("service", "Council"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalysisResult is returned to the client for verification.
type AnalysisResult struct {
	DetectedText   string `json:"detected_text"`
	ImageReference string `json:"image_reference,omitempty"`
}

// LogMealRequest is the verified meal. A zero MealID is replaced with a fresh one.
type LogMealRequest struct {
	UserID         string
	VerifiedText   string
	ImageReference string
	MealID         uuid.UUID
}

// Analyze validates the image, then asks the vision provider to describe it.
func (c *Council) Analyze(ctx context.Context, image []byte) (*AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "council.analyze", trace.WithAttributes(attribute.Int("image.bytes", len(image))))
	defer span.End()

	c.transition(ctx, StateReceived)

	contentType, err := ValidateImage(image, c.cfg.MaxImageBytes)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.transition(ctx, StateVisionPending)
	det, err := callProvider(c, ctx, "vision", c.cfg.VisionTimeout, func(ctx context.Context) (DetectionResult, error) {
		return c.deps.Vision.Detect(ctx, image)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		c.log.Error("vision stage failed", "error", err)
		return nil, &StageError{Stage: "vision", Kind: ErrAnalysisFailed, Err: err}
	}

	result := &AnalysisResult{DetectedText: det.Text}
	if c.deps.Images != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
		ref, err := c.deps.Images.Store(archiveCtx, image, contentType)
		cancel()
		if err != nil {
			c.log.Warn("image archive failed, continuing without reference", "error", err)
		} else {
			result.ImageReference = ref
		}
	}

	c.transition(ctx, StateAwaitingVerification)
	return result, nil
}

// LogMeal quantifies the verified text, asks for advice and stores the meal.
// The store write is the last step, so a failed earlier stage leaves nothing behind.
func (c *Council) LogMeal(ctx context.Context, req LogMealRequest) (*models.MealLog, error) {
	ctx, span := tracer.Start(ctx, "council.log_meal", trace.WithAttributes(attribute.String("user.id", req.UserID)))
	defer span.End()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, invalidInput("user_id", "must not be empty")
	}
	text := strings.TrimSpace(req.VerifiedText)
	if text == "" {
		return nil, invalidInput("verified_text", "must not be empty")
	}

	c.transition(ctx, StateNutritionPending)
	items, err := callProvider(c, ctx, "nutrition", c.cfg.NutritionTimeout, func(ctx context.Context) ([]models.NutritionItem, error) {
		return c.deps.Nutrition.Quantify(ctx, text)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		c.log.Error("nutrition stage failed", "user_id", userID, "error", err)
		return nil, &StageError{Stage: "nutrition", Kind: ErrQuantificationFailed, Err: err}
	}
	if items == nil {
		items = []models.NutritionItem{}
	}

	totals := Aggregate(items)
	c.transition(ctx, StateAggregated)

	dish := DishName(text)
	now := c.now()

	c.transition(ctx, StateAdvisoryPending)
	adviceCtx := c.adviceContext(ctx, userID, dish, now)
	adviseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.AdviceTimeout)
	advice := c.deps.Advisor.Advise(adviseCtx, totals, adviceCtx)
	cancel()
	if strings.TrimSpace(advice) == "" {
		advice = FallbackAdvice
	}

	mealID := req.MealID
	if mealID == uuid.Nil {
		mealID = uuid.New()
	}
	meal := &models.MealLog{
		ID:             mealID,
		UserID:         userID,
		DishName:       dish,
		VerifiedText:   text,
		Nutrition:      totals,
		Items:          items,
		AIAdvice:       advice,
		ImageReference: strings.TrimSpace(req.ImageReference),
		Timestamp:      now.UTC(),
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
	err = c.deps.Store.Insert(storeCtx, meal)
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.log.Error("persist stage failed", "meal_id", mealID, "error", err)
		return nil, &StageError{Stage: "persist", Kind: ErrPersistence, Err: err}
	}

	c.transition(ctx, StatePersisted)
	c.log.Info("meal logged", "meal_id", meal.ID, "user_id", userID, "calories", totals.Calories, "items", len(items))
	return meal, nil
}

// adviceContext gathers what is known about the user's day. Lookups that fail
// only shrink the context.
func (c *Council) adviceContext(ctx context.Context, userID, dish string, now time.Time) AdviceContext {
	ac := AdviceContext{DishName: dish}
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StoreTimeout)
	defer cancel()

	goal := float64(c.cfg.DefaultDailyGoal)
	ac.HealthGoal = string(models.GoalMaintain)
	var (
		meals   []models.MealLog
		mealErr error
	)

	// Lookup failures are logged, never returned.
	var g errgroup.Group
	if c.deps.Profiles != nil {
		g.Go(func() error {
			profile, err := c.deps.Profiles.GetProfile(lookupCtx, userID)
			switch {
			case err == nil:
				if profile.DailyCalorieGoal > 0 {
					goal = float64(profile.DailyCalorieGoal)
				}
				if profile.HealthGoal != "" {
					ac.HealthGoal = string(profile.HealthGoal)
				}
			case errors.Is(err, ErrNotFound):
			default:
				c.log.Warn("profile lookup failed, using defaults", "user_id", userID, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		meals, mealErr = c.deps.Store.ListByUserAndDay(lookupCtx, userID, now.In(c.cfg.Location))
		return nil
	})
	_ = g.Wait()

	ac.DailyGoal = &goal
	if mealErr != nil {
		c.log.Warn("could not load today's meals for advice", "user_id", userID, "error", mealErr)
		return ac
	}
	consumed := Total(meals).Calories
	count := len(meals)
	ac.ConsumedToday = &consumed
	ac.MealsToday = &count
	return ac
}

func (c *Council) transition(ctx context.Context, s State) {
	trace.SpanFromContext(ctx).AddEvent(string(s))
	c.log.Debug("council state", "state", s)
	if c.observer != nil {
		c.observer(ctx, s)
	}
}

// callProvider runs fn on a context detached from the caller, with a deadline
// per attempt. Only unavailability is retried, and only MaxRetries times.
func callProvider[T any](c *Council, ctx context.Context, provider string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	base := context.WithoutCancel(ctx)
	var out T

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		v, err := fn(attemptCtx)
		if err != nil {
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrUpstreamUnavailable) {
				err = unavailable(provider, 0, err)
			}
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	policy := backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries))

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Warn("provider call failed, retrying", "provider", provider, "wait", wait, "error", err)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
