package challenge

import "context"

// ProgressStore владеет всем состоянием пользователей и их записей.
// Никакой другой компонент не изменяет User или DailyEntry напрямую.
//
// Все методы чтения возвращают копии: изменение результата не влияет на
// хранилище, а снимок никогда не содержит наполовину записанную DailyEntry.
type ProgressStore interface {
	// RegisterUser идемпотентен: для существующего id возвращает
	// пользователя без изменений и не сбрасывает прогресс.
	RegisterUser(ctx context.Context, id UserID, displayName string) (User, error)

	// RecordSubmission возвращает ErrInvalidDay, ErrNegativeMetric,
	// ErrUserNotFound или ErrDuplicateDay. При ошибке состояние не меняется.
	RecordSubmission(ctx context.Context, id UserID, day int, metrics Metrics) error

	// UpdateSubmission явно перезаписывает уже существующий день.
	// Для дня без записи возвращает ErrDayNotSubmitted.
	UpdateSubmission(ctx context.Context, id UserID, day int, metrics Metrics) error

	// ResetProgress очищает Progress. Флаг Eligible сохраняется.
	ResetProgress(ctx context.Context, id UserID) error

	// SetProfile обновляет социальный профиль пользователя.
	SetProfile(ctx context.Context, id UserID, update ProfileUpdate) error

	GetUser(ctx context.Context, id UserID) (User, error)

	// AllUsers возвращает снимок в порядке регистрации.
	AllUsers(ctx context.Context) ([]User, error)

	// MarkEligible идемпотентен. newly == true только при переходе false -> true.
	MarkEligible(ctx context.Context, id UserID) (newly bool, err error)
}
