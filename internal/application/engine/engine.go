// Package engine содержит фасад ChallengeEngine - единственную точку входа
// для транспортных адаптеров (Telegram, HTTP).
//
// Каждая операция - одна единица работы над ProgressStore. Производные
// значения (состояние, вердикт, лидерборд) вычисляются заново на каждый
// запрос.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ErrNoMetricsSource возвращается OnSubmitContent, если источник метрик не настроен.
var ErrNoMetricsSource = errors.New("engine: metrics source is not configured")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config содержит зависимости движка.
type Config struct {
	// Store - обязательное хранилище прогресса.
	Store challenge.ProgressStore

	// Evaluator - политика допуска. По умолчанию challenge.DefaultPolicy().
	Evaluator challenge.Evaluator

	// ChallengeLength - число дней челленджа. По умолчанию challenge.ChallengeDays.
	ChallengeLength int

	// Metrics - источник метрик для OnSubmitContent (опционально).
	Metrics MetricsSource

	// Scorer - оценка контента (опционально).
	Scorer ContentScorer

	// Cache - кеш лидерборда (опционально).
	Cache LeaderboardCache

	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine - фасад челленджа.
type Engine struct {
	store     challenge.ProgressStore
	evaluator challenge.Evaluator
	length    int
	metrics   MetricsSource
	scorer    ContentScorer
	cache     LeaderboardCache
	logger    *slog.Logger

	// boardGen растёт при каждой записи; заполнение кеша снимком,
	// снятым до записи, отбрасывается.
	boardGen atomic.Uint64
}

// New создаёт движок.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = challenge.DefaultPolicy()
	}
	if cfg.ChallengeLength <= 0 {
		cfg.ChallengeLength = challenge.ChallengeDays
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		store:     cfg.Store,
		evaluator: cfg.Evaluator,
		length:    cfg.ChallengeLength,
		metrics:   cfg.Metrics,
		scorer:    cfg.Scorer,
		cache:     cfg.Cache,
		logger:    cfg.Logger.With("component", "engine"),
	}, nil
}

// Store возвращает хранилище прогресса.
func (e *Engine) Store() challenge.ProgressStore {
	return e.store
}

// ChallengeLength возвращает число дней челленджа.
func (e *Engine) ChallengeLength() int {
	return e.length
}

// OnStart регистрирует пользователя. Повторный вызов не сбрасывает прогресс.
func (e *Engine) OnStart(ctx context.Context, id challenge.UserID, displayName string) (challenge.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Creator"
	}

	user, err := e.store.RegisterUser(ctx, id, displayName)
	if err != nil {
		return challenge.User{}, fmt.Errorf("register user: %w", err)
	}
	e.invalidateLeaderboard(ctx)

	e.logger.Debug("user registered", "user_id", id, "seq", user.Seq)
	return user, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStep - результат обработки свободного текста.
type ProfileStep int

const (
	// ProfileComplete - оба поля уже заполнены, текст проигнорирован.
	ProfileComplete ProfileStep = iota
	// SocialHandleSaved - сохранён социальный аккаунт.
	SocialHandleSaved
	// ViralContentSaved - сохранён самый вирусный контент.
	ViralContentSaved
)

// String returns the step name.
func (s ProfileStep) String() string {
	switch s {
	case SocialHandleSaved:
		return "social_handle_saved"
	case ViralContentSaved:
		return "viral_content_saved"
	default:
		return "profile_complete"
	}
}

// OnProfileInput заполняет профиль по шагам: сначала аккаунт, затем контент.
func (e *Engine) OnProfileInput(ctx context.Context, id challenge.UserID, text string) (ProfileStep, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ProfileComplete, challenge.ErrEmptyProfileValue
	}

	user, err := e.store.GetUser(ctx, id)
	if err != nil {
		return ProfileComplete, err
	}

	var (
		update challenge.ProfileUpdate
		step   ProfileStep
	)
	switch {
	case user.SocialHandle == "":
		update.SocialHandle = &text
		step = SocialHandleSaved
	case user.ViralContent == "":
		update.ViralContent = &text
		step = ViralContentSaved
	default:
		return ProfileComplete, nil
	}

	if err := e.store.SetProfile(ctx, id, update); err != nil {
		return ProfileComplete, fmt.Errorf("set profile: %w", err)
	}
	return step, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// OnChallengeStart начинает новый заход: прогресс очищается.
func (e *Engine) OnChallengeStart(ctx context.Context, id challenge.UserID) error {
	if err := e.store.ResetProgress(ctx, id); err != nil {
		return err
	}
	e.invalidateLeaderboard(ctx)
	e.logger.Info("challenge started", "user_id", id)
	return nil
}

// OnSubmission записывает метрики дня и возвращает новое состояние.
func (e *Engine) OnSubmission(ctx context.Context, id challenge.UserID, day int, metrics challenge.Metrics) (challenge.ChallengeState, error) {
	if err := e.store.RecordSubmission(ctx, id, day, metrics); err != nil {
		return challenge.ChallengeState{}, err
	}
	return e.stateAfterWrite(ctx, id, day)
}

// OnResubmission явно перезаписывает метрики уже сданного дня.
func (e *Engine) OnResubmission(ctx context.Context, id challenge.UserID, day int, metrics challenge.Metrics) (challenge.ChallengeState, error) {
	if err := e.store.UpdateSubmission(ctx, id, day, metrics); err != nil {
		return challenge.ChallengeState{}, err
	}
	return e.stateAfterWrite(ctx, id, day)
}

// Submission - результат OnSubmitContent.
type Submission struct {
	Day     int
	Metrics challenge.Metrics
	State   challenge.ChallengeState
	Score   *Score
}

// OnSubmitContent получает метрики по ссылке и записывает их за день.
// Внешние вызовы выполняются до обращения к хранилищу.
func (e *Engine) OnSubmitContent(ctx context.Context, id challenge.UserID, day int, contentRef string) (Submission, error) {
	if e.metrics == nil {
		return Submission{}, ErrNoMetricsSource
	}
	if err := challenge.ValidateDay(day, e.length); err != nil {
		return Submission{}, err
	}
	if _, err := e.store.GetUser(ctx, id); err != nil {
		return Submission{}, err
	}

	metrics, err := e.metrics.FetchMetrics(ctx, contentRef)
	if err != nil {
		return Submission{}, fmt.Errorf("fetch metrics: %w", err)
	}

	sub := Submission{Day: day, Metrics: metrics}

	if e.scorer != nil {
		score, err := e.scorer.Score(ctx, contentRef)
		if err != nil {
			e.logger.Warn("content scoring failed", "user_id", id, "error", err)
		} else {
			sub.Score = &score
		}
	}

	sub.State, err = e.OnSubmission(ctx, id, day, metrics)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (e *Engine) stateAfterWrite(ctx context.Context, id challenge.UserID, day int) (challenge.ChallengeState, error) {
	e.invalidateLeaderboard(ctx)

	user, err := e.store.GetUser(ctx, id)
	if err != nil {
		return challenge.ChallengeState{}, err
	}

	state := challenge.Aggregate(user)
	e.logger.Info("submission recorded",
		"user_id", id,
		"day", day,
		"total_days", state.TotalDays,
		"total_views", state.TotalViews,
	)
	return state, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// Evaluation - ответ на запрос оценки.
type Evaluation struct {
	User    challenge.User
	State   challenge.ChallengeState
	Verdict challenge.Verdict

	// NewlyEligible true только при первом успешном вердикте. Используется,
	// чтобы отправить медиа-награду ровно один раз.
	NewlyEligible bool
}

// OnEvaluateRequest вычисляет вердикт и фиксирует флаг Eligible.
func (e *Engine) OnEvaluateRequest(ctx context.Context, id challenge.UserID) (Evaluation, error) {
	ev, err := e.Evaluate(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}

	if ev.Verdict.Eligible {
		newly, err := e.store.MarkEligible(ctx, id)
		if err != nil {
			return Evaluation{}, fmt.Errorf("mark eligible: %w", err)
		}
		ev.NewlyEligible = newly
		ev.User.Eligible = true
		if newly {
			e.logger.Info("user became eligible",
				"user_id", id,
				"total_days", ev.State.TotalDays,
				"total_views", ev.State.TotalViews,
			)
		}
	}

	return ev, nil
}

// Evaluate вычисляет вердикт без записи в хранилище.
func (e *Engine) Evaluate(ctx context.Context, id challenge.UserID) (Evaluation, error) {
	user, err := e.store.GetUser(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}

	state := challenge.Aggregate(user)
	return Evaluation{
		User:    user,
		State:   state,
		Verdict: e.evaluator.Evaluate(state),
	}, nil
}

// UserState возвращает пользователя и его агрегат.
func (e *Engine) UserState(ctx context.Context, id challenge.UserID) (challenge.User, challenge.ChallengeState, error) {
	user, err := e.store.GetUser(ctx, id)
	if err != nil {
		return challenge.User{}, challenge.ChallengeState{}, err
	}
	return user, challenge.Aggregate(user), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// OnLeaderboardRequest возвращает полную таблицу лидеров.
// Ошибки кеша не считаются ошибками запроса.
func (e *Engine) OnLeaderboardRequest(ctx context.Context) ([]challenge.LeaderboardEntry, error) {
	if e.cache != nil {
		entries, err := e.cache.GetLeaderboard(ctx)
		if err == nil {
			return entries, nil
		}
		e.logger.Debug("leaderboard cache miss", "error", err)
	}

	gen := e.boardGen.Load()
	users, err := e.store.AllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot users: %w", err)
	}

	entries := challenge.Leaderboard(users)

	if e.cache != nil {
		e.fillLeaderboard(ctx, gen, entries)
	}
	return entries, nil
}

// fillLeaderboard кладёт снимок в кеш, только если после его снятия не было
// записей. Запись, проскочившая между проверкой и SetLeaderboard, снова
// сбрасывает кеш.
func (e *Engine) fillLeaderboard(ctx context.Context, gen uint64, entries []challenge.LeaderboardEntry) {
	if e.boardGen.Load() != gen {
		e.logger.Debug("leaderboard snapshot outdated, not caching")
		return
	}
	if err := e.cache.SetLeaderboard(ctx, entries); err != nil {
		e.logger.Warn("failed to cache leaderboard", "error", err)
		return
	}
	if e.boardGen.Load() != gen {
		e.invalidateLeaderboard(ctx)
	}
}

func (e *Engine) invalidateLeaderboard(ctx context.Context) {
	e.boardGen.Add(1)
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateLeaderboard(ctx); err != nil {
		e.logger.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}
