package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/pandodao/token-bridge/core"
)

type contextKey struct{}

type authInfo struct {
	token    string
	identity *core.Identity
}

func withAuth(ctx context.Context, info *authInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

func authFrom(ctx context.Context) *authInfo {
	info, _ := ctx.Value(contextKey{}).(*authInfo)
	return info
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}

	return ""
}

// authenticate resolves the session token into the caller's identity.
func (s *Server) authenticate(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			renderError(w, core.ErrSessionNotFound)
			return
		}

		identity, err := s.identityz.Resolve(r.Context(), token)
		if err != nil {
			s.logger.Debug("identityz.Resolve", "err", err)
			renderError(w, err)
			return
		}

		ctx := withAuth(r.Context(), &authInfo{token: token, identity: identity})
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}
