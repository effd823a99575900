package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"marquee/pkg/env"
	"marquee/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "marquee"
	sessionTTL  = 24 * time.Hour
)

var (
	secretOnce sync.Once
	secret     []byte
)

// secretKey returns the HMAC key for session tokens. Without
// MARQUEE_JWT_SECRET a random key is generated at first use, so
// sessions do not survive a restart.
func secretKey() []byte {
	secretOnce.Do(func() {
		if v := os.Getenv("MARQUEE_JWT_SECRET"); v != "" {
			secret = []byte(v)
			return
		}
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Fatal("Could not generate a session secret: %v", err)
		}
		logger.Warn("MARQUEE_JWT_SECRET is not set, sessions will not survive a restart")
	})
	return secret
}

// Credentials stores the authentication information
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GetCredentials retrieves credentials from environment variables
func GetCredentials() Credentials {
	return Credentials{
		Username: env.GetString("MARQUEE_USERNAME", "admin"),
		Password: env.GetString("MARQUEE_PASSWORD", "password"),
	}
}

// Enabled reports whether request authentication is turned on.
func Enabled() bool {
	return env.IsBool("MARQUEE_AUTH_ENABLED", true)
}

// isPublicPath checks if the request may pass without a token
func isPublicPath(path string) bool {
	publicPaths := []string{
		"/api/auth/login",
		"/api/auth/enabled",
		"/api/health",
	}
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// validateCredentials checks if the provided credentials match the stored ones
func validateCredentials(username, password string) bool {
	credentials := GetCredentials()
	return subtle.ConstantTimeCompare([]byte(username), []byte(credentials.Username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(password), []byte(credentials.Password)) == 1
}

// JWTClaims defines the structure for JWT claims
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateJWT generates a JWT for a given username
func GenerateJWT(username string) (string, error) {
	claims := JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey())
}

func parseToken(tokenStr string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey(), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// JWTMiddleware protects endpoints with JWT auth
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenStr := ""
		if strings.HasPrefix(header, "Bearer ") {
			tokenStr = strings.TrimPrefix(header, "Bearer ")
		} else if token := r.URL.Query().Get("token"); token != "" {
			// WebDAV clients often cannot set headers
			tokenStr = token
		}

		if tokenStr == "" {
			logger.Warn("Missing token for path: %s", r.URL.Path)
			http.Error(w, "Missing or invalid Authorization header or token parameter", http.StatusUnauthorized)
			return
		}

		if _, err := parseToken(tokenStr); err != nil {
			logger.Warn("Invalid or expired token for path %s: %v", r.URL.Path, err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleLogin handles the login endpoint (JWT version)
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		logger.Warn("Invalid request body: %v", err)
		return
	}
	if !validateCredentials(creds.Username, creds.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		logger.Warn("Failed login attempt for user '%s'", creds.Username)
		return
	}
	token, err := GenerateJWT(creds.Username)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		logger.Warn("Failed to generate token for user '%s': %v", creds.Username, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
	logger.Info("Successful login for user '%s'", creds.Username)
}

// HandleEnabled reports whether clients need to log in at all
func HandleEnabled(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"enabled": Enabled()})
}

// HandleAuthCheck checks if the JWT is valid
func HandleAuthCheck(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	valid := false
	if strings.HasPrefix(header, "Bearer ") {
		if _, err := parseToken(strings.TrimPrefix(header, "Bearer ")); err == nil {
			valid = true
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"isAuthenticated": valid,
		"authEnabled":     Enabled(),
	})
}

// HandleMe returns the current user's info from the JWT
func HandleMe(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		http.Error(w, "Missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}
	claims, err := parseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"username": claims.Username,
	})
}
