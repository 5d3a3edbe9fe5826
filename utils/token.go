package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

type JWTToken struct {
	config *Config
}

func NewJWTToken(config *Config) *JWTToken {
	return &JWTToken{config: config}
}

type jwtClaim struct {
	jwt.StandardClaims
	AdminID int64  `json:"admin_id"`
	Email   string `json:"admin_email"`
	Role    string `json:"admin_role"`
	Exp     int64  `json:"exp"`
}

type TokenObject struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"admin_email"`
	Role    string `json:"admin_role"`
}

func (j *JWTToken) CreateToken(admin TokenObject) (string, error) {
	claims := jwtClaim{
		AdminID: admin.AdminID,
		Email:   admin.Email,
		Role:    admin.Role,
		Exp:     time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(j.config.SigningKey))
	if err != nil {
		return "", err
	}

	return string(tokenString), nil
}

func (j *JWTToken) VerifyToken(tokenString string) (TokenObject, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid authentication token, format error")
		}
		return []byte(j.config.SigningKey), nil
	})

	if err != nil {
		return TokenObject{}, fmt.Errorf("invalid authentication token, %v", err.Error())
	}

	claims, ok := token.Claims.(*jwtClaim)
	if !ok {
		return TokenObject{}, fmt.Errorf("invalid authentication token, token is not OK")
	}

	if claims.Exp < time.Now().Unix() {
		return TokenObject{}, fmt.Errorf("token is expired")
	}

	return TokenObject{
		AdminID: claims.AdminID,
		Email:   claims.Email,
		Role:    claims.Role,
	}, nil
}
