package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

// checkAuthConfig rejects an unset operator password or signing secret. An
// empty password would validate an empty submitted credential, and an empty
// secret lets anyone forge tokens.
func (s *Server) checkAuthConfig() error {
	if s.cfg.Auth.Password == "" {
		return eris.New("server: auth.password is not configured")
	}
	if s.cfg.Auth.Secret == "" {
		return eris.New("server: auth.secret is not configured")
	}
	return nil
}

// issueToken signs a short-lived HS256 bearer token for the operator.
func (s *Server) issueToken(username string) (string, time.Time, error) {
	if err := s.checkAuthConfig(); err != nil {
		return "", time.Time{}, err
	}
	expires := time.Now().Add(time.Duration(s.cfg.Auth.TokenTTLMins) * time.Minute)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expires),
		Issuer:    "crash-cli",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Auth.Secret))
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "server: sign token")
	}
	return token, expires, nil
}

// verifyToken parses and validates a bearer token, returning its subject.
func (s *Server) verifyToken(tokenString string) (string, error) {
	if err := s.checkAuthConfig(); err != nil {
		return "", err
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, eris.Errorf("server: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.Secret), nil
	})
	if err != nil {
		return "", eris.Wrap(err, "server: parse token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", eris.New("server: invalid token")
	}
	return claims.Subject, nil
}

// credentialsValid checks the operator credential in constant time.
func (s *Server) credentialsValid(username, password string) bool {
	if s.checkAuthConfig() != nil {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Auth.Password)) == 1
	return userOK && passOK
}

// requireAuth rejects requests without a valid bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if _, err := s.verifyToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
