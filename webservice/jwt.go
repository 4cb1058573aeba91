package webservice

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authCookie = "auth_token"

type CustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (wm *WebMaster) GenerateToken() (string, error) {
	now := wm.now()
	claims := &CustomClaims{
		Role: "controller",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(wm.tokenTTL)),
			Issuer:    "mirrorctl",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(wm.jwtSecret)
}

// HybridAuthMiddleware accepts a token from the auth_token cookie or a
// Bearer header. It lets everything through when no PIN is set.
func (wm *WebMaster) HybridAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if wm.pin == "" {
			c.Next()
			return
		}

		tokenString, _ := c.Cookie(authCookie)
		if tokenString == "" {
			if h, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				tokenString = h
			}
		}
		if tokenString == "" || !wm.validateToken(tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (wm *WebMaster) validateToken(tokenString string) bool {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return wm.jwtSecret, nil
	}, jwt.WithTimeFunc(wm.now), jwt.WithIssuer("mirrorctl"))
	return err == nil && token.Valid
}
