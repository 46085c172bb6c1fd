package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	"github.com/alejo7774/crypto-tax-calculator-2025/src/utils"
)

const csrfCookieName = "_csrf_token"

// CSRFHandler implements double-submit CSRF protection with HMAC-signed
// tokens: the cookie and the X-CSRF-Token header must carry the same token,
// and the token's signature must verify against the server key.
type CSRFHandler struct {
	authKey []byte
}

func NewCSRFHandler(authKey []byte) *CSRFHandler {
	return &CSRFHandler{authKey: authKey}
}

// GetCSRFToken issues a token: one copy in an HttpOnly cookie, one in the
// response for the client to echo back in X-CSRF-Token.
func (c *CSRFHandler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := c.generateSignedToken()
	if err != nil {
		logger.L.Error("Failed to generate CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{
		"csrfToken": token,
	})
}

// Middleware validates the token on state-changing requests. Safe methods
// pass through.
func (c *CSRFHandler) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken != "" && err == nil &&
				hmac.Equal([]byte(headerToken), []byte(cookie.Value)) &&
				c.verifySignedToken(headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF token validation failed", "method", r.Method, "path", r.URL.Path)
			utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}

func (c *CSRFHandler) generateSignedToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(b)
	return payload + "." + c.sign(payload), nil
}

func (c *CSRFHandler) verifySignedToken(token string) bool {
	payload, signature, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(c.sign(payload)))
}

func (c *CSRFHandler) sign(payload string) string {
	mac := hmac.New(sha256.New, c.authKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
