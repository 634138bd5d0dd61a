package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("course not found")

func Fetch(ctx context.Context, db *sqlx.DB, id int64) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := db.GetContext(ctx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%d]: %w", id, err)
	}

	return c, nil
}

func List(ctx context.Context, db *sqlx.DB, subjectID int64) ([]Course, error) {
	q := `SELECT * FROM courses ORDER BY course_id`
	args := []interface{}{}

	if subjectID != 0 {
		q = `SELECT * FROM courses WHERE subject_id = $1 ORDER BY course_id`
		args = append(args, subjectID)
	}

	courses := []Course{}
	if err := db.SelectContext(ctx, &courses, q, args...); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}

	return courses, nil
}

func ListOwned(ctx context.Context, db *sqlx.DB, userID string) ([]Course, error) {
	const q = `
	SELECT c.* FROM courses AS c
	JOIN courses_owned AS o ON o.course_id = c.course_id
	WHERE o.user_id = $1
	ORDER BY c.course_id`

	courses := []Course{}
	if err := db.SelectContext(ctx, &courses, q, userID); err != nil {
		return nil, fmt.Errorf("selecting owned courses: %w", err)
	}

	return courses, nil
}

func IsOwned(ctx context.Context, db *sqlx.DB, userID string, courseID int64) (bool, error) {
	const q = `SELECT COUNT(*) FROM courses_owned WHERE user_id = $1 AND course_id = $2`

	var n int
	if err := db.GetContext(ctx, &n, q, userID, courseID); err != nil {
		return false, fmt.Errorf("checking course ownership: %w", err)
	}

	return n > 0, nil
}

// Grant records ownership, tolerating repeats so order fulfillment stays
// idempotent.
func Grant(ctx context.Context, db sqlx.ExtContext, userID string, courseID int64, now time.Time) error {
	const q = `
	INSERT INTO courses_owned (user_id, course_id, created_at)
	VALUES ($1, $2, $3)
	ON CONFLICT DO NOTHING`

	if _, err := db.ExecContext(ctx, q, userID, courseID, now); err != nil {
		return fmt.Errorf("granting course[%d] to user[%s]: %w", courseID, userID, err)
	}

	return nil
}
