package lecture

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/course"
)

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		courseID, err := strconv.ParseInt(web.Param(r, "course_id"), 10, 64)
		if err != nil {
			return weberr.BadRequest(errors.New("course id is not a number"))
		}

		lectures, err := ListByCourse(ctx, db, courseID)
		if err != nil {
			return err
		}

		owned := false
		if clm, err := claims.Get(ctx); err == nil {
			owned, err = course.IsOwned(ctx, db, clm.UserID, courseID)
			if err != nil {
				return err
			}
		}

		for i := range lectures {
			if !owned && !lectures[i].Free {
				lectures[i].URL = ""
			}
		}

		return web.Respond(ctx, w, web.Success(lectures), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := strconv.ParseInt(web.Param(r, "id"), 10, 64)
		if err != nil {
			return weberr.BadRequest(errors.New("lecture id is not a number"))
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !l.Free {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			owned, err := course.IsOwned(ctx, db, clm.UserID, l.CourseID)
			if err != nil {
				return err
			}
			if !owned {
				return weberr.NewError(errors.New("course not owned"), "purchase the course to view this lecture", http.StatusForbidden)
			}
		}

		return web.Respond(ctx, w, web.Success(l), http.StatusOK)
	}
}
