package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims はセッショントークンのクレーム（ペイロード）を表す。
// ログイン時に発行され、以後のリクエストでCookie経由で提示される。
type SessionClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Role はユーザーのロール。
	Role Role `json:"role"`
}

const (
	// TokenCookieName はセッショントークンを格納するCookie名。
	TokenCookieName = "token"
	// DefaultTokenTTL はセッショントークンの既定の有効期間。
	DefaultTokenTTL = 24 * time.Hour

	tokenIssuer = "campus-portal"

	contextKeyUserID = "user_id"
	contextKeyRole   = "role"
)

var (
	// ErrMissingToken はトークンが提示されなかった場合のエラー。
	ErrMissingToken = errors.New("トークンがありません")
	// ErrInvalidToken は署名や形式が不正なトークンのエラー。
	ErrInvalidToken = errors.New("トークンが無効です")
	// ErrExpiredToken は有効期限切れのトークンのエラー。
	ErrExpiredToken = errors.New("トークンの有効期限が切れています")
)

// GenerateToken はユーザーIDとロールからセッショントークンを生成する。
// ttlが0以下の場合はDefaultTokenTTLを使用する。
func GenerateToken(secret, userID string, role Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseToken はセッショントークンを検証し、クレームを返す。
// 返すエラーは ErrMissingToken, ErrInvalidToken, ErrExpiredToken, ErrUnknownRole のいずれかをラップする。
func ParseToken(secret, tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case !token.Valid:
		return nil, ErrInvalidToken
	}

	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return claims, nil
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// Gateミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetRole はGinコンテキストからロールを取得する。
func GetRole(c *gin.Context) (Role, bool) {
	v, _ := c.Get(contextKeyRole)
	role, ok := v.(Role)
	return role, ok
}
