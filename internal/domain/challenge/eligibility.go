package challenge

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultMinViews - порог просмотров. Требуется строго больше.
const DefaultMinViews int64 = 10000

// Verdict - результат проверки допуска к наградам.
type Verdict struct {
	Eligible   bool  `json:"eligible"`
	TotalDays  int   `json:"total_days"`
	TotalViews int64 `json:"total_views"`

	// MissingDays и MissingViews показывают, сколько не хватает до порога.
	MissingDays  int   `json:"missing_days"`
	MissingViews int64 `json:"missing_views"`
}

// Evaluator применяет критерии завершения челленджа. Реализации должны быть
// чистыми функциями без побочных эффектов.
type Evaluator interface {
	Evaluate(state ChallengeState) Verdict
}

// Policy - пороговая политика: дней >= MinDays И просмотров > MinViews.
type Policy struct {
	MinDays  int
	MinViews int64
}

// DefaultPolicy возвращает политику 21 день / более 10000 просмотров.
func DefaultPolicy() Policy {
	return Policy{
		MinDays:  ChallengeDays,
		MinViews: DefaultMinViews,
	}
}

// Evaluate не предполагает верхней границы дней: любое значение >= MinDays
// удовлетворяет критерию.
func (p Policy) Evaluate(state ChallengeState) Verdict {
	v := Verdict{
		TotalDays:  state.TotalDays,
		TotalViews: state.TotalViews,
	}

	if state.TotalDays < p.MinDays {
		v.MissingDays = p.MinDays - state.TotalDays
	}
	if state.TotalViews <= p.MinViews {
		v.MissingViews = p.MinViews - state.TotalViews + 1
	}

	v.Eligible = v.MissingDays == 0 && v.MissingViews == 0
	return v
}

var _ Evaluator = Policy{}
