package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"autouploader/domain/dto"
	"autouploader/infrastructure/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Auth guards the status API with an HS256 bearer token. An empty secret
// leaves the API open, which is the default for a local operator console.
func Auth(secretKey string) gin.HandlerFunc {
	if secretKey == "" {
		logger.GetLogger().Warn("No secret key configured, status API is unauthenticated")
		return func(ctx *gin.Context) { ctx.Next() }
	}

	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		authorization := ctx.Request.Header.Get("Authorization")
		if authorization == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		auth := strings.Split(authorization, "Bearer ")
		if len(auth) != 2 || auth[1] == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		claims, token, err := getClaim(auth[1], secretKey)
		if err == nil && token != nil && token.Valid {
			if sub, ok := claims["sub"].(string); ok {
				ctx.Set("operator", sub)
			}
			ctx.Next()
			return
		}
		abort(err, &res)
		logger.GetLogger().WithField("error", err).Debug("Rejected bearer token")
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
	}
}

func abort(err error, res *dto.Res) {
	var ve *jwt.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	if ve.Errors&jwt.ValidationErrorMalformed != 0 {
		res.ResponseMessage = "That's not even a token"
	} else if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
		// Token is either expired or not active yet
		res.ResponseMessage = "Timing is everything"
	} else {
		res.ResponseMessage = fmt.Sprintf("Couldn't handle this token:%v", err)
	}
}

func getClaim(raw string, secretKey string) (jwt.MapClaims, *jwt.Token, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	return claims, token, err
}
