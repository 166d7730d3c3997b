package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const RequestIDHeader = "X-Request-ID"

var ErrInvalidToken = errors.New("invalid token")

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()

		ctx := utils.CreateCtxWithRqID(c.Request.Context(), c.GetHeader(RequestIDHeader))
		rqID := utils.GetRequestIDFromCtx(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, rqID)

		slog.Info(
			"start request",
			slog.String("rqID", rqID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
		)

		defer func() {
			slog.Info(
				"request finished",
				slog.String("rqID", rqID),
				slog.Int("status", c.Writer.Status()),
				slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
			)
		}()

		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error(
			"Panic recovered in request",
			slog.String("rqID", utils.GetRequestIDFromCtx(c.Request.Context())),
			slog.Any("panic", recovered),
			slog.String("stacktrace", string(debug.Stack())),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "internal error"})
	})
}

// Claims of the bearer token. Subject holds the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth resolves the caller from an HS256 bearer token and puts it into the request context.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		rqID := utils.GetRequestIDFromCtx(c.Request.Context())

		token, ok := strings.CutPrefix(strings.TrimSpace(c.GetHeader("Authorization")), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing bearer token"})
			return
		}

		actor, err := ParseToken(key, strings.TrimSpace(token))
		if err != nil {
			slog.Info("token rejected", slog.String("rqID", rqID), slog.String("err", err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid token"})
			return
		}

		c.Request = c.Request.WithContext(utils.CreateCtxWithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := utils.GetActorFromCtx(c.Request.Context())
		if !ok || !actor.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "admin role required"})
			return
		}
		c.Next()
	}
}

func ParseToken(secret []byte, token string) (model.Actor, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return model.Actor{}, err
	}
	if !parsed.Valid {
		return model.Actor{}, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return model.Actor{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	role := model.UserRole(claims.Role)
	if role == "" {
		role = model.RoleUser
	}

	return model.Actor{UserID: userID, Role: role}, nil
}

// SignToken issues a token for actor valid for ttl.
func SignToken(secret []byte, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
