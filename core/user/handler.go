package user

import (
	"context"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
)

func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(err)
		}

		usr, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if err == ErrNotFound {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, web.Success(usr), http.StatusOK)
	}
}
