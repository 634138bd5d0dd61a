package middleware

import (
	"context"
	"net/http"

	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/sirupsen/logrus"
)

// Errors turns handler errors into wire responses. Errors decorated with a
// response (weberr) keep their body and status; anything else becomes an
// opaque 500 failure envelope.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := map[string]interface{}{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			log.WithFields(logrus.Fields(fields)).Error("ERROR")

			if body, code, ok := weberr.Response(err); ok {
				return web.Respond(ctx, w, body, code)
			}

			return web.Respond(ctx, w, web.Failure(http.StatusText(http.StatusInternalServerError)), http.StatusInternalServerError)
		}
		return h
	}
	return m
}
