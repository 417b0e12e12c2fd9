package challenge

import (
	"sort"
	"strconv"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeDays - длина челленджа в днях. День индексируется с 1.
const ChallengeDays = 21

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrUserNotFound    = shared.NewDomainError("challenge", "GetUser", shared.ErrNotFound, "user not found")
	ErrDuplicateDay    = shared.NewDomainError("challenge", "RecordSubmission", shared.ErrAlreadyExists, "day already submitted")
	ErrDayNotSubmitted = shared.NewDomainError("challenge", "UpdateSubmission", shared.ErrNotFound, "day has no submission")
	ErrInvalidDay      = shared.WrapError("challenge", "Validate", shared.ErrValidation, "day out of range", shared.ErrValueOutOfRange)
	ErrNegativeMetric  = shared.WrapError("challenge", "Validate", shared.ErrValidation, "metrics cannot be negative", shared.ErrNegativeValue)
	ErrInvalidUserID   = shared.NewDomainError("challenge", "Validate", shared.ErrInvalidID, "invalid user ID")

	ErrEmptyProfileValue = shared.NewDomainError("challenge", "SetProfile", shared.ErrEmptyValue, "profile value cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// UserID - непрозрачный идентификатор пользователя, выдаваемый транспортом
// (для Telegram это user id).
type UserID int64

// IsValid проверяет, что идентификатор положительный.
func (id UserID) IsValid() bool {
	return id > 0
}

// Int64 возвращает числовое значение.
func (id UserID) Int64() int64 {
	return int64(id)
}

// String возвращает строковое представление.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseUserID разбирает идентификатор из строки.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidUserID
	}
	return UserID(v), nil
}

// Metrics - снимок метрик контента за один день.
type Metrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

// Validate проверяет, что все счётчики неотрицательные.
func (m Metrics) Validate() error {
	if m.Views < 0 || m.Likes < 0 || m.Comments < 0 {
		return ErrNegativeMetric
	}
	return nil
}

// Engagement возвращает сумму просмотров, лайков и комментариев.
func (m Metrics) Engagement() int64 {
	return m.Views + m.Likes + m.Comments
}

// ValidateDay проверяет, что индекс дня лежит в диапазоне 1..length.
// Нулевая или отрицательная длина означает ChallengeDays.
func ValidateDay(day, length int) error {
	if length <= 0 {
		length = ChallengeDays
	}
	if day < 1 || day > length {
		return ErrInvalidDay
	}
	return nil
}

// ValidateSubmission объединяет проверку дня и метрик.
func ValidateSubmission(day, length int, m Metrics) error {
	if err := ValidateDay(day, length); err != nil {
		return err
	}
	return m.Validate()
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// DailyEntry - запись о публикации за конкретный день челленджа.
type DailyEntry struct {
	Day         int       `json:"day"`
	Metrics     Metrics   `json:"metrics"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// User - участник челленджа.
type User struct {
	ID           UserID
	DisplayName  string
	SocialHandle string
	ViralContent string

	// Progress - записи по индексу дня. Пустая карта означает, что
	// пользователь ещё не начал челлендж.
	Progress map[int]DailyEntry

	// Eligible - единственное производное значение, которое записывается
	// обратно в состояние. Переход только false -> true.
	Eligible bool

	RegisteredAt time.Time

	// Seq - порядковый номер регистрации, разрешает равенство RegisteredAt.
	Seq int64
}

// HasStarted сообщает, есть ли у пользователя хотя бы одна запись.
func (u User) HasStarted() bool {
	return len(u.Progress) > 0
}

// HasProfile сообщает, заполнены ли оба поля профиля.
func (u User) HasProfile() bool {
	return u.SocialHandle != "" && u.ViralContent != ""
}

// Days возвращает отсортированные индексы дней с записями.
func (u User) Days() []int {
	days := make([]int, 0, len(u.Progress))
	for d := range u.Progress {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Clone возвращает глубокую копию пользователя.
func (u User) Clone() User {
	c := u
	c.Progress = make(map[int]DailyEntry, len(u.Progress))
	for d, e := range u.Progress {
		c.Progress[d] = e
	}
	return c
}

// ProfileUpdate задаёт поля профиля для изменения. nil означает "не менять".
type ProfileUpdate struct {
	SocialHandle *string
	ViralContent *string
}

// IsEmpty сообщает, что изменений нет.
func (p ProfileUpdate) IsEmpty() bool {
	return p.SocialHandle == nil && p.ViralContent == nil
}

// Apply применяет изменения к пользователю.
func (p ProfileUpdate) Apply(u *User) {
	if p.SocialHandle != nil {
		u.SocialHandle = *p.SocialHandle
	}
	if p.ViralContent != nil {
		u.ViralContent = *p.ViralContent
	}
}
