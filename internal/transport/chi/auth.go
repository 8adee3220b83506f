package chi

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/sonicweb/internal/logger"
)

type keyScope int

const (
	scopeNone keyScope = iota
	scopeRead
	scopeFull
)

// keyring matches presented tokens against hashed keys in constant time.
type keyring struct {
	hashes [][sha256.Size]byte
	scopes []keyScope
}

func newKeyring(full, readOnly []string) *keyring {
	kr := &keyring{}
	add := func(keys []string, scope keyScope) {
		for _, k := range keys {
			if k = strings.TrimSpace(k); k != "" {
				kr.hashes = append(kr.hashes, sha256.Sum256([]byte(k)))
				kr.scopes = append(kr.scopes, scope)
			}
		}
	}
	add(readOnly, scopeRead)
	add(full, scopeFull)
	return kr
}

func (kr *keyring) empty() bool { return len(kr.hashes) == 0 }

// scope returns the widest scope granted to token. Every key is compared.
func (kr *keyring) scope(token string) keyScope {
	h := sha256.Sum256([]byte(token))
	granted := scopeNone
	for i := range kr.hashes {
		if subtle.ConstantTimeCompare(h[:], kr.hashes[i][:]) == 1 && kr.scopes[i] > granted {
			granted = kr.scopes[i]
		}
	}
	return granted
}

// BearerAuthMiddleware validates Bearer tokens. Full keys may call every
// route; read-only keys are limited to GET and HEAD. The page, its assets,
// /health and /metrics are always open. With no keys configured the
// middleware is a pass-through.
func BearerAuthMiddleware(apiKeys, readOnlyKeys []string) func(http.Handler) http.Handler {
	kr := newKeyring(apiKeys, readOnlyKeys)

	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if kr.empty() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing or malformed bearer token")
				return
			}

			switch kr.scope(token) {
			case scopeFull:
				next.ServeHTTP(w, r)
			case scopeRead:
				if r.Method != http.MethodGet && r.Method != http.MethodHead {
					reject(w, r, http.StatusForbidden, ErrorCodeForbidden, "read-only key cannot modify the index")
					return
				}
				next.ServeHTTP(w, r)
			default:
				reject(w, r, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
			}
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func reject(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, message string) {
	logpkg.FromContext(r.Context()).Warn("auth rejected",
		zap.String("path", r.URL.Path),
		zap.String("reason", string(code)),
	)
	writeError(w, status, code, message)
}

func isPublic(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	switch path {
	case "/", "/health", "/metrics":
		return true
	}
	return strings.HasPrefix(path, staticPrefix)
}
