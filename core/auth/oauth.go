package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jmoiron/sqlx"
	"github.com/khalidmaz/e-learning-market/api/web"
	"github.com/khalidmaz/e-learning-market/api/weberr"
	"github.com/khalidmaz/e-learning-market/core/claims"
	"github.com/khalidmaz/e-learning-market/core/user"
	"github.com/khalidmaz/e-learning-market/random"
	"github.com/khalidmaz/e-learning-market/validate"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

type Provider struct {
	conf     *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	providers := make(map[string]Provider, len(cfgs))
	for _, cfg := range cfgs {
		prov, err := oidc.NewProvider(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", cfg.Name, err)
		}

		providers[cfg.Name] = Provider{
			conf: &oauth2.Config{
				ClientID:     cfg.Client,
				ClientSecret: cfg.Secret,
				Endpoint:     prov.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			},
			verifier: prov.Verifier(&oidc.Config{ClientID: cfg.Client}),
		}
	}

	return providers, nil
}

// HandleOauthLogin bounces the browser to the provider's consent page. The
// anti-forgery state travels in a short-lived cookie since no session token
// exists yet at this point.
func HandleOauthLogin(providers map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := providers[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, prov.conf.AuthCodeURL(state), http.StatusTemporaryRedirect)
		return nil
	}
}

// HandleOauthCallback finishes the code exchange, upserting the user and
// handing the fresh session token back to the frontend via the redirect URL,
// which stores it the same way a password login would.
func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, providers map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := providers[web.Param(r, "provider")]
		if !ok {
			return weberr.NotFound(errors.New("unknown oauth provider"))
		}

		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != web.Query(r, "state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := prov.conf.Exchange(ctx, web.Query(r, "code"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("exchanging oauth code: %w", err))
		}

		rawID, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("token response is missing the id token"))
		}

		idTok, err := prov.verifier.Verify(ctx, rawID)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id token: %w", err))
		}

		var profile struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idTok.Claims(&profile); err != nil {
			return fmt.Errorf("extracting id token claims: %w", err)
		}

		usr, err := user.FetchByEmail(ctx, db, strings.ToLower(profile.Email))
		if err != nil {
			if !errors.Is(err, user.ErrNotFound) {
				return err
			}

			now := time.Now().UTC()
			usr = user.User{
				ID:        validate.GenerateID(),
				Name:      profile.Name,
				Email:     strings.ToLower(profile.Email),
				Role:      claims.RoleStudent,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := user.Create(ctx, db, usr); err != nil {
				return fmt.Errorf("creating oauth user: %w", err)
			}
		}

		data, err := startSession(ctx, session, usr)
		if err != nil {
			return err
		}

		http.Redirect(w, r, redirectURL+"?token="+data.Token, http.StatusTemporaryRedirect)
		return nil
	}
}
