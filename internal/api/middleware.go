package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/metrics"
	"alcyxob/fitness-sync/internal/session"
)

// Constants for context keys
const (
	ContextUserIDKey  = "userID"
	ContextSessionKey = "syncSession"
)

// jwtClaims defines the structure we expect in the JWT payload.
// Mirroring the structure used in authService.generateJWT
type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}
		tokenString := parts[1]

		// Parse and validate the token
		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			// Validate the alg is what we expect:
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			}
			return
		}

		if !token.Valid || claims.UserID == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// SessionMiddleware opens (or touches) the caller's sync session. Must run AFTER
// AuthMiddleware.
func SessionMiddleware(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserIDFromContext(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "User ID not found in context")
			return
		}
		s, err := sessions.Open(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, session.ErrClosed) {
				abortWithError(c, http.StatusServiceUnavailable, "Server is shutting down")
				return
			}
			logging.Error().Err(err).Str("owner_id", userID).Msg("failed to open sync session")
			abortWithError(c, http.StatusInternalServerError, "Could not open sync session")
			return
		}
		c.Set(ContextSessionKey, s)
		c.Next()
	}
}

// RequestMetrics counts requests by method and status and observes their duration.
func RequestMetrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		begin := time.Now()
		c.Next()
		m.HistRequestDuration.Observe(time.Since(begin).Seconds())
		m.CounterRequests.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RequestLogger replaces gin's default logger with a zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logging.Debug()
		if status >= http.StatusInternalServerError {
			evt = logging.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(begin)).
			Msg("request")
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (string, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return "", errors.New("invalid user ID type in context")
	}
	return idStr, nil
}

// Helper function to get the sync session from context (used by handlers)
func getSessionFromContext(c *gin.Context) (*session.Session, bool) {
	raw, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	s, ok := raw.(*session.Session)
	return s, ok
}
