package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/course"
	"github.com/khalidmaz/e-learning-market/validate"
)

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		items, err := FetchItems(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		crt := Cart{Items: make([]course.Course, 0, len(items))}
		for _, it := range items {
			c, err := course.Fetch(ctx, db, it.CourseID)
			if err != nil {
				return fmt.Errorf("fetching course[%d]: %w", it.CourseID, err)
			}

			crt.Items = append(crt.Items, c)
			crt.TotalPrice = crt.TotalPrice.Add(c.Price)
		}
		crt.TotalItems = len(crt.Items)

		return web.Respond(ctx, w, web.Success(crt), http.StatusOK)
	}
}

func HandleCreateItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding cart item: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := course.Fetch(ctx, db, in.CourseID); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if err := CreateItem(ctx, db, clm.UserID, in.CourseID, time.Now().UTC()); err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Success(nil), http.StatusOK)
	}
}

func HandleDeleteItem(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		courseID, err := strconv.ParseInt(web.Param(r, "course_id"), 10, 64)
		if err != nil {
			return weberr.BadRequest(errors.New("course id is not a number"))
		}

		if err := DeleteItem(ctx, db, clm.UserID, courseID); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := Delete(ctx, db, clm.UserID); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
