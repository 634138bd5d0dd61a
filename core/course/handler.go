package course

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var subjectID int64
		if s := web.Query(r, "subject_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return weberr.BadRequest(errors.New("subject_id is not a number"))
			}
			subjectID = id
		}

		courses, err := List(ctx, db, subjectID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(courses), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id, err := strconv.ParseInt(web.Param(r, "id"), 10, 64)
		if err != nil {
			return weberr.BadRequest(errors.New("course id is not a number"))
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, web.Success(c), http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courses, err := ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(courses), http.StatusOK)
	}
}
