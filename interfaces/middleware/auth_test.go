package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autouploader/domain/dto"
	"autouploader/infrastructure/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/ping", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"operator": ctx.GetString("operator")})
	})
	return r
}

func doRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_OpenWithoutSecret(t *testing.T) {
	w := doRequest(newRouter(""), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MissingHeader(t *testing.T) {
	w := doRequest(newRouter("s3cret"), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken(map[string]interface{}{
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, "s3cret")
	require.NoError(t, err)

	w := doRequest(newRouter("s3cret"), "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operator-1")
}

func TestAuth_RejectsTokens(t *testing.T) {
	expired, err := utils.GenerateToken(map[string]interface{}{"exp": time.Now().Add(-time.Hour).Unix()}, "s3cret")
	require.NoError(t, err)
	wrongKey, err := utils.GenerateToken(map[string]interface{}{"sub": "x"}, "other")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "malformed", header: "Bearer not-a-token", message: "That's not even a token"},
		{name: "expired", header: "Bearer " + expired, message: "Timing is everything"},
		{name: "wrong key", header: "Bearer " + wrongKey, message: "Couldn't handle this token"},
		{name: "no bearer prefix", header: "Token abc", message: "Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(newRouter("s3cret"), tt.header)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			var res dto.Res
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "401", res.ResponseCode)
			assert.Contains(t, res.ResponseMessage, tt.message)
		})
	}
}
