package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Session lengths. "Remember me" extends the token to a week.
const (
	defaultTokenHours    = 5
	rememberMeTokenHours = 168
)

type JwtCustomClaim struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	DealershipID string `json:"dealership_id,omitempty"`
	IsDemo       bool   `json:"is_demo,omitempty"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "keyflow-dev-secret"
	}
	return secret
}

func tokenLifespan(rememberMe bool) time.Duration {
	hours := defaultTokenHours
	if rememberMe {
		hours = rememberMeTokenHours
	}
	if override := os.Getenv("TOKEN_HOUR_LIFESPAN"); override != "" && !rememberMe {
		if n, err := strconv.Atoi(override); err == nil && n > 0 {
			hours = n
		}
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(userID, name, role, dealershipID string, isDemo bool, rememberMe bool) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		UserID:       userID,
		Name:         name,
		Role:         role,
		DealershipID: dealershipID,
		IsDemo:       isDemo,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenLifespan(rememberMe)).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})

	token, err := t.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
}
