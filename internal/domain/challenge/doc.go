// Package challenge содержит доменную модель 21-дневного челленджа для
// создателей контента.
//
// Пакет определяет:
//
//   - Сущности: User, DailyEntry
//   - Value Objects: UserID, Metrics, ChallengeState, Verdict
//   - Интерфейс хранилища: ProgressStore
//   - Чистые функции агрегации: Aggregate, Leaderboard
//   - Политику допуска к наградам: Policy, Evaluator
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - ProgressStore реализуется в infrastructure
//  3. Производные значения (ChallengeState, LeaderboardEntry, Verdict)
//     всегда вычисляются заново и никогда не кешируются в User
//
// # Пример
//
//	user, _ := store.RegisterUser(ctx, UserID(42), "Aisha")
//	_ = store.RecordSubmission(ctx, user.ID, 1, Metrics{Views: 500})
//	user, _ = store.GetUser(ctx, user.ID) // RegisterUser вернул снимок до записи
//	state := Aggregate(user)
//	verdict := DefaultPolicy().Evaluate(state)
package challenge
