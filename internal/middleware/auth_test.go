package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"requisition/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testSecret = []byte("test-secret")

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.String(http.StatusOK, id.String())
	})
	r.GET("/probe", handlers...)
	return r
}

func TestAuthenticate(t *testing.T) {
	userID := uuid.New()
	valid, err := IssueToken(testSecret, userID, []model.Role{model.RoleSO}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, userID, nil, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other"), userID, nil, time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		cookie   string
		expected int
	}{
		{"bearer header", "Bearer " + valid, "", http.StatusOK},
		{"cookie", "", valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, "", http.StatusUnauthorized},
		{"subject not a uuid", "Bearer " + noSubject, "", http.StatusUnauthorized},
	}

	r := newRouter(Authenticate(testSecret))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
			if tt.expected == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newRouter(Authenticate(testSecret), RequireRole(model.RoleAdmin, model.RoleTransportAdmin))

	call := func(roles ...model.Role) int {
		token, err := IssueToken(testSecret, uuid.New(), roles, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(model.RoleAdmin))
	assert.Equal(t, http.StatusOK, call(model.RoleDriver, model.RoleTransportAdmin))
	assert.Equal(t, http.StatusForbidden, call(model.RoleSO))
	assert.Equal(t, http.StatusForbidden, call())

	// without Authenticate there are no role claims at all
	bare := newRouter(RequireRole(model.RoleAdmin))
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(Authenticate(testSecret), RequestLogger(zap.New(core)))

	token, err := IssueToken(testSecret, uuid.New(), nil, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/probe", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Contains(t, fields, "user_id")
}
