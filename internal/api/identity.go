package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-dev/uireg/internal/errors"
	"github.com/vango-dev/uireg/internal/store"
)

// Identity headers set by the auth proxy.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUsername  = "X-Username"
	HeaderUserName  = "X-User-Name"
	HeaderUserImage = "X-User-Image"
)

type userKey struct{}

// WithUser returns a context carrying u.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the signed-in user, or nil.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKey{}).(*store.User)
	return u
}

// Identity upserts the user named by the identity headers and stores it
// in the request context. Requests without the headers pass through
// anonymously.
func Identity(users UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			username := strings.TrimSpace(r.Header.Get(HeaderUsername))
			if id == "" || username == "" || users == nil {
				next.ServeHTTP(w, r)
				return
			}

			u, err := users.UpsertUser(r.Context(), store.User{
				ID:       id,
				Username: username,
				Name:     strings.TrimSpace(r.Header.Get(HeaderUserName)),
				ImageURL: strings.TrimSpace(r.Header.Get(HeaderUserImage)),
			})
			if err != nil {
				logger.Error("upsert user failed", "user_id", id, "error", err)
				writeError(w, errors.FromError(err, "E205"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeError(w, errors.New("E345"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
