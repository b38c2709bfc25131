package utils

import (
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	jwtSecret   []byte
	tokenExpiry = 240 * time.Hour
)

// InitJWT 設定簽章密鑰與有效期限，必須在發放或驗證 token 前呼叫
func InitJWT(secret string, expireHours int) {
	jwtSecret = []byte(secret)
	if expireHours > 0 {
		tokenExpiry = time.Duration(expireHours) * time.Hour
	}
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// GenerateToken 生成一個新的 JWT token，內含用戶 ID 與角色
func GenerateToken(userID uint, role string) (string, error) {
	nowTime := time.Now()
	expireTime := nowTime.Add(tokenExpiry)

	claims := Claims{
		UserID: userID,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expireTime.Unix(),
			IssuedAt:  nowTime.Unix(),
		},
	}

	tokenClaims := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenClaims.SignedString(jwtSecret)
}

// ParseToken 解析和驗證 JWT token
func ParseToken(token string) (*Claims, error) {
	tokenClaims, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if tokenClaims != nil {
		if claims, ok := tokenClaims.Claims.(*Claims); ok && tokenClaims.Valid {
			return claims, nil
		}
	}

	return nil, err
}
