package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements challenge.ProgressStore on top of two tables:
// challenge_users and daily_entries. Duplicate days are rejected by the
// (user_id, day) primary key, so concurrent submissions stay consistent
// across processes.
type ProgressRepository struct {
	conn            *Connection
	challengeLength int
}

// NewProgressRepository creates the repository. A non-positive length means
// the default 21 days.
func NewProgressRepository(conn *Connection, challengeLength int) *ProgressRepository {
	if challengeLength <= 0 {
		challengeLength = challenge.ChallengeDays
	}
	return &ProgressRepository{conn: conn, challengeLength: challengeLength}
}

const (
	selectUser = `
	SELECT id, seq, display_name, social_handle, viral_content, eligible, registered_at
	FROM challenge_users`

	selectEntries = `
	SELECT user_id, day, views, likes, comments, submitted_at
	FROM daily_entries`
)

// RegisterUser inserts the user unless present and returns the stored row.
func (r *ProgressRepository) RegisterUser(ctx context.Context, id challenge.UserID, displayName string) (challenge.User, error) {
	if !id.IsValid() {
		return challenge.User{}, challenge.ErrInvalidUserID
	}

	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO challenge_users (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`,
		id.Int64(), displayName)
	if err != nil {
		return challenge.User{}, fmt.Errorf("register user %s: %w", id, err)
	}

	return r.GetUser(ctx, id)
}

// RecordSubmission inserts a new day. The user lookup and insert share a
// transaction so a concurrent reset cannot slip between them.
func (r *ProgressRepository) RecordSubmission(ctx context.Context, id challenge.UserID, day int, metrics challenge.Metrics) error {
	if err := challenge.ValidateSubmission(day, r.challengeLength, metrics); err != nil {
		return err
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO daily_entries (user_id, day, views, likes, comments)
			VALUES ($1, $2, $3, $4, $5)`,
			id.Int64(), day, metrics.Views, metrics.Likes, metrics.Comments)
		if IsUniqueViolation(err) {
			return fmt.Errorf("user %s day %d: %w", id, day, challenge.ErrDuplicateDay)
		}
		if err != nil {
			return fmt.Errorf("record submission: %w", err)
		}
		return nil
	})
}

// UpdateSubmission overwrites an existing day.
func (r *ProgressRepository) UpdateSubmission(ctx context.Context, id challenge.UserID, day int, metrics challenge.Metrics) error {
	if err := challenge.ValidateSubmission(day, r.challengeLength, metrics); err != nil {
		return err
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE daily_entries
			SET views = $3, likes = $4, comments = $5, submitted_at = NOW()
			WHERE user_id = $1 AND day = $2`,
			id.Int64(), day, metrics.Views, metrics.Likes, metrics.Comments)
		if err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %s day %d: %w", id, day, challenge.ErrDayNotSubmitted)
		}
		return nil
	})
}

// ResetProgress deletes every entry. The eligible flag is left alone.
func (r *ProgressRepository) ResetProgress(ctx context.Context, id challenge.UserID) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockUser(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM daily_entries WHERE user_id = $1`, id.Int64()); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
		return nil
	})
}

// SetProfile writes only the fields present in update.
func (r *ProgressRepository) SetProfile(ctx context.Context, id challenge.UserID, update challenge.ProfileUpdate) error {
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE challenge_users
		SET social_handle = COALESCE($2, social_handle),
		    viral_content = COALESCE($3, viral_content)
		WHERE id = $1`,
		id.Int64(), update.SocialHandle, update.ViralContent)
	if err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	return nil
}

// GetUser loads the user row plus its entries from one snapshot, so a
// concurrent reset never leaves the row and the entries out of step.
func (r *ProgressRepository) GetUser(ctx context.Context, id challenge.UserID) (challenge.User, error) {
	var u challenge.User
	err := r.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, selectUser+` WHERE id = $1`, id.Int64()))
		if IsNoRows(err) {
			return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
		}
		if err != nil {
			return fmt.Errorf("get user %s: %w", id, err)
		}

		rows, err := tx.Query(ctx, selectEntries+` WHERE user_id = $1`, id.Int64())
		if err != nil {
			return fmt.Errorf("load entries for %s: %w", id, err)
		}
		return collectEntries(rows, map[challenge.UserID]*challenge.User{u.ID: &u})
	})
	if err != nil {
		return challenge.User{}, err
	}
	return u, nil
}

// AllUsers reads every user and entry inside one repeatable-read
// transaction so the snapshot is consistent.
func (r *ProgressRepository) AllUsers(ctx context.Context) ([]challenge.User, error) {
	var users []challenge.User
	err := r.conn.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectUser+` ORDER BY seq`)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		users, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (challenge.User, error) {
			return scanUser(row)
		})
		if err != nil {
			return fmt.Errorf("scan users: %w", err)
		}

		byUser := make(map[challenge.UserID]*challenge.User, len(users))
		for i := range users {
			byUser[users[i].ID] = &users[i]
		}

		rows, err = tx.Query(ctx, selectEntries)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return collectEntries(rows, byUser)
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// MarkEligible flips the flag once; the WHERE clause makes it a single
// atomic test-and-set.
func (r *ProgressRepository) MarkEligible(ctx context.Context, id challenge.UserID) (bool, error) {
	tag, err := r.conn.Pool().Exec(ctx,
		`UPDATE challenge_users SET eligible = TRUE WHERE id = $1 AND eligible = FALSE`,
		id.Int64())
	if err != nil {
		return false, fmt.Errorf("mark eligible: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = r.conn.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM challenge_users WHERE id = $1)`, id.Int64()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("mark eligible: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	return false, nil
}

// Ping lets the repository take part in readiness checks.
func (r *ProgressRepository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// lockUser takes a row lock on the user, or reports ErrUserNotFound.
func lockUser(ctx context.Context, tx pgx.Tx, id challenge.UserID) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM challenge_users WHERE id = $1 FOR UPDATE`, id.Int64()).Scan(&one)
	if IsNoRows(err) {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock user %s: %w", id, err)
	}
	return nil
}

func scanUser(row pgx.Row) (challenge.User, error) {
	var (
		u  challenge.User
		id int64
	)
	err := row.Scan(&id, &u.Seq, &u.DisplayName, &u.SocialHandle, &u.ViralContent, &u.Eligible, &u.RegisteredAt)
	if err != nil {
		return challenge.User{}, err
	}
	u.ID = challenge.UserID(id)
	u.Progress = make(map[int]challenge.DailyEntry)
	return u, nil
}

func collectEntries(rows pgx.Rows, byUser map[challenge.UserID]*challenge.User) error {
	defer rows.Close()
	for rows.Next() {
		var (
			userID      int64
			day         int16
			m           challenge.Metrics
			submittedAt time.Time
		)
		if err := rows.Scan(&userID, &day, &m.Views, &m.Likes, &m.Comments, &submittedAt); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		u, ok := byUser[challenge.UserID(userID)]
		if !ok {
			continue
		}
		u.Progress[int(day)] = challenge.DailyEntry{
			Day:         int(day),
			Metrics:     m,
			SubmittedAt: submittedAt,
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}
	return nil
}

var _ challenge.ProgressStore = (*ProgressRepository)(nil)
