package auth

import (
	"errors"
	"time"

	"prompt-studio/app/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenNotExpiry = errors.New("token still valid, no need to refresh")
)

// Claims 令牌中携带的用户信息
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// JWTService 签发与校验访问令牌
type JWTService struct {
	cfg config.JWTConfig
	now func() time.Time
}

func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{cfg: cfg, now: time.Now}
}

// TTL 令牌有效期
func (j *JWTService) TTL() time.Duration {
	return time.Duration(j.cfg.ExpireTime) * time.Hour
}

// GenerateToken 生成令牌
func (j *JWTService) GenerateToken(userID uint, username string, isAdmin bool) (string, error) {
	now := j.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.cfg.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.cfg.Secret))
}

// ValidateToken 校验令牌并返回声明
func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(j.cfg.Secret), nil
	}, jwt.WithIssuer(j.cfg.Issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// RefreshToken 令牌剩余不足一小时才允许换发
func (j *JWTService) RefreshToken(tokenString string) (string, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.ExpiresAt.Time.Sub(j.now()) > time.Hour {
		return "", ErrTokenNotExpiry
	}
	return j.GenerateToken(claims.UserID, claims.Username, claims.IsAdmin)
}
