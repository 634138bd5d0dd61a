package lecture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("lecture not found")

func ListByCourse(ctx context.Context, db *sqlx.DB, courseID int64) ([]Lecture, error) {
	const q = `SELECT * FROM lectures WHERE course_id = $1 ORDER BY index`

	lectures := []Lecture{}
	if err := db.SelectContext(ctx, &lectures, q, courseID); err != nil {
		return nil, fmt.Errorf("selecting lectures of course[%d]: %w", courseID, err)
	}

	return lectures, nil
}

func Fetch(ctx context.Context, db *sqlx.DB, id int64) (Lecture, error) {
	const q = `SELECT * FROM lectures WHERE lecture_id = $1`

	var l Lecture
	if err := db.GetContext(ctx, &l, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lecture{}, ErrNotFound
		}
		return Lecture{}, fmt.Errorf("selecting lecture[%d]: %w", id, err)
	}

	return l, nil
}
