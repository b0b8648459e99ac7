package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Israr974/BuyZaar-sub001/internal/config"
	"github.com/Israr974/BuyZaar-sub001/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const ctxIdentityKey = "identity"

// アクセストークンから取り出した呼び出し元
type Identity struct {
	UserID       int64      `json:"user_id"`
	Role         model.Role `json:"role"`
	TokenVersion int        `json:"tv"`
}

func (id Identity) IsAdmin() bool { return id.Role == model.RoleAdmin }

// AuthJWT以降でのみ取れる
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(ctxIdentityKey).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}

// 発行は認証サービス側。sub=ユーザーID、tv=token_version
type accessClaims struct {
	Role         model.Role `json:"role"`
	TokenVersion *int       `json:"tv"`
	jwt.RegisteredClaims
}

var errInvalidClaims = errors.New("invalid claims")

func (c *accessClaims) identity() (Identity, error) {
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, errInvalidClaims
	}
	if !c.Role.Valid() {
		return Identity{}, errInvalidClaims
	}
	if c.TokenVersion == nil || *c.TokenVersion < 0 {
		return Identity{}, errInvalidClaims
	}
	return Identity{UserID: userID, Role: c.Role, TokenVersion: *c.TokenVersion}, nil
}

// Bearerトークン（HS256）を検証してIdentityをcontextに入れる
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return unauthorized(c)
			}

			var claims accessClaims
			token, err := parser.ParseWithClaims(raw, &claims, keyFunc)
			if err != nil || !token.Valid {
				return unauthorized(c)
			}
			id, err := claims.identity()
			if err != nil {
				return unauthorized(c)
			}

			c.Set(ctxIdentityKey, id)
			return next(c)
		}
	}
}

func bearerToken(authz string) (string, bool) {
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type errorResponse struct {
	Error string `json:"error"`
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
}
