package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/rate"
)

// RateLimit rejects clients that exceed the per-address allowance tracked by
// the shared limiter.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Check(host) {
				err := errors.New("client exceeded the request rate limit")
				return weberr.NewError(err, "too many requests", http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
