/**
 * @description
 * This file contains the signer authentication middleware for the HTTP router.
 * Callers prove control of a ledger identity by presenting an EdDSA-signed JWT
 * whose `sub` claim carries their 32-byte Ed25519 public key (unpadded
 * base64url). The token is self-certifying: the middleware decodes the key from
 * the claim and verifies the token's signature against it, which is the
 * off-chain analog of a transaction signed by that identity.
 *
 * @dependencies
 * - context, crypto/ed25519, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and EdDSA verification.
 * - internal/domain: The Identity type placed on the request context.
 */

package api

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lumenfund/campaign-service/internal/domain"
)

// signerContextKey is a custom type for the context key to avoid collisions.
type signerContextKey string

const signerIdentityKey signerContextKey = "signerIdentity"

// SignerAuthMiddleware validates the caller's self-certifying EdDSA token and
// places the verified identity on the request context.
func SignerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		var identity domain.Identity
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				return nil, fmt.Errorf("signer identity missing from token subject")
			}
			raw, err := base64.RawURLEncoding.DecodeString(subject)
			if err != nil {
				return nil, fmt.Errorf("decode signer identity: %w", err)
			}
			if len(raw) != domain.IdentityLen {
				return nil, fmt.Errorf("signer identity must be %d bytes, got %d", domain.IdentityLen, len(raw))
			}
			copy(identity[:], raw)

			return ed25519.PublicKey(raw), nil
		})

		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}
		if !token.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), signerIdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSignerIdentity retrieves the verified signer identity from the request
// context. Handlers should use this to learn who invoked the entry point.
func GetSignerIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(signerIdentityKey).(domain.Identity)
	return identity, ok
}
