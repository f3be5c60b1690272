package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/Parthmh361/pure-harvest/internal/auth"
)

func newTestJWT(t *testing.T) *iauth.JWTService {
	t.Helper()
	svc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret", Issuer: "marketplace", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	return svc
}

func issueToken(t *testing.T, svc *iauth.JWTService, userID, role string) string {
	t.Helper()
	token, err := svc.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Role: role})
	require.NoError(t, err)
	return token
}

func whoAmI(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey), "role": c.GetString(CtxRoleKey)})
}

func TestAuthenticators(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := newTestJWT(t)
	token := issueToken(t, jwtSvc, "farmer-9", "farmer")

	r := gin.New()
	r.GET("/api/notifications", Auth(jwtSvc), whoAmI)
	r.GET("/api/notifications/stream", StreamAuth(jwtSvc), whoAmI)

	cases := []struct {
		name      string
		target    string
		header    string
		status    int
		challenge string
	}{
		{name: "no credentials", target: "/api/notifications", status: http.StatusUnauthorized},
		{name: "basic scheme", target: "/api/notifications", header: "Basic Zm9vOmJhcg==", status: http.StatusUnauthorized},
		{name: "garbage token", target: "/api/notifications", header: "Bearer not-a-token", status: http.StatusUnauthorized, challenge: `Bearer error="invalid_token"`},
		{name: "query token on rest route", target: "/api/notifications?token=" + token, status: http.StatusUnauthorized},
		{name: "header token", target: "/api/notifications", header: "bearer " + token, status: http.StatusOK},
		{name: "query token on stream", target: "/api/notifications/stream?token=" + token, status: http.StatusOK},
		{name: "header wins on stream", target: "/api/notifications/stream?token=junk", header: "Bearer " + token, status: http.StatusOK},
		{name: "stream without token", target: "/api/notifications/stream", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tc.status, w.Code)
			require.Equal(t, tc.challenge, w.Header().Get("WWW-Authenticate"))
			if tc.status != http.StatusOK {
				return
			}
			var identity map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identity))
			require.Equal(t, map[string]string{"user_id": "farmer-9", "role": "farmer"}, identity)
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := newTestJWT(t)

	r := gin.New()
	created := func(c *gin.Context) { c.Status(http.StatusCreated) }
	r.POST("/api/events/orders", Auth(jwtSvc), RequireRole(" Admin "), created)
	r.POST("/unauthenticated", RequireRole("admin"), created)

	for role, want := range map[string]int{
		"admin":  http.StatusCreated,
		"ADMIN":  http.StatusCreated,
		"farmer": http.StatusForbidden,
		"":       http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/events/orders", nil)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, jwtSvc, "user-1", role))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, want, w.Code, "role %q", role)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unauthenticated", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
