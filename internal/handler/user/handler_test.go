package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/referral-api/internal/email"
	userHandler "github.com/jwalitptl/referral-api/internal/handler/user"
	"github.com/jwalitptl/referral-api/internal/middleware"
	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository/memory"
	"github.com/jwalitptl/referral-api/internal/service/audit"
	authsvc "github.com/jwalitptl/referral-api/internal/service/auth"
	"github.com/jwalitptl/referral-api/internal/service/rbac"
	"github.com/jwalitptl/referral-api/internal/service/role"
	usersvc "github.com/jwalitptl/referral-api/internal/service/user"
	"github.com/jwalitptl/referral-api/pkg/auth"
	"github.com/jwalitptl/referral-api/pkg/logger"
	"github.com/jwalitptl/referral-api/pkg/security"
	"github.com/jwalitptl/referral-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	v := validator.New()
	hasher := security.NewBcryptHasher(4)
	policy := rbac.NewPolicy(store.Users())
	auditor := audit.NewService(store.Audit(), logger.Nop())
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "access", RefreshSecret: "refresh", Issuer: "test"})

	users := usersvc.NewService(store, store.Users(), role.NewService(store.Roles(), time.Minute),
		policy, hasher, v, email.NewNoopService(), auditor, logger.Nop())
	authn := authsvc.NewService(store.Users(), policy, hasher, jwtSvc, v, auditor)

	engine := gin.New()
	middleware.UseValidator(v)
	userHandler.NewHandler(users, authn, middleware.NewAuthMiddleware(jwtSvc)).RegisterRoutes(engine.Group(""))
	return &testServer{engine: engine, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, addr string, r model.RoleName) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/user/register", map[string]interface{}{
		"email": addr, "password": "secret", "role": string(r),
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *testServer) login(t *testing.T, addr string) model.AuthView {
	t.Helper()
	w := s.do(t, http.MethodPost, "/user/auth", map[string]string{"email": addr, "password": "secret"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view model.AuthView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func (s *testServer) userID(t *testing.T, addr string) int64 {
	t.Helper()
	u, err := s.store.Users().GetByEmail(context.Background(), addr)
	require.NoError(t, err)
	return u.ID
}

func TestListUsers_EmptyIsNotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/user/all", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/user/register", map[string]string{"email": "vht@example.com", "password": "secret"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/user/register", map[string]string{"email": "vht@example.com", "password": "secret"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Email has already been taken")

	view := s.login(t, "vht@example.com")
	assert.NotEmpty(t, view.Token)
	assert.NotEmpty(t, view.Refresh)
	assert.True(t, view.IsLoggedIn)
	assert.Equal(t, []model.RoleName{model.RoleVHT}, view.Roles)

	w = s.do(t, http.MethodPost, "/user/auth", map[string]string{"email": "vht@example.com", "password": "wrong-pass"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/user/token", nil, view.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var identity model.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identity))
	assert.Equal(t, "vht@example.com", identity.Email)

	w = s.do(t, http.MethodGet, "/user/token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/user/all", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/user/vhts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`[%d]`, s.userID(t, "vht@example.com")), w.Body.String())
}

func TestRegister_RejectsBadBodies(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/user/register", map[string]string{"email": "not-an-email", "password": "secret"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/user/register", map[string]string{"email": "a@b.org", "password": "secret", "shoeSize": "9"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/user/register", map[string]string{"email": "a@b.org", "password": "secret", "role": "NURSE"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "hcw@example.com", model.RoleHCW)
	view := s.login(t, "hcw@example.com")

	w := s.do(t, http.MethodPost, "/user/refresh", map[string]string{"refresh": view.Refresh}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/user/refresh", map[string]string{"refresh": view.Token}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDeleteUser(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "admin@example.com", model.RoleAdmin)
	s.register(t, "vht@example.com", model.RoleVHT)
	admin := s.login(t, "admin@example.com")
	vht := s.login(t, "vht@example.com")
	vhtID := s.userID(t, "vht@example.com")

	w := s.do(t, http.MethodDelete, fmt.Sprintf("/user/delete/%d", vhtID), nil, vht.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/user/delete/9999", nil, admin.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/user/delete/%d", vhtID), nil, admin.Token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/user/%d", vhtID), nil, admin.Token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateUser(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "cho@example.com", model.RoleCHO)
	s.register(t, "vht@example.com", model.RoleVHT)
	choID := s.userID(t, "cho@example.com")
	vhtID := s.userID(t, "vht@example.com")

	w := s.do(t, http.MethodPut, fmt.Sprintf("/user/edit/%d", choID), map[string]interface{}{
		"firstName": "Grace",
		"newVhtIds": []int64{vhtID},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	view := s.login(t, "cho@example.com")
	assert.Equal(t, []int64{vhtID}, view.VHTList)
	require.NotNil(t, view.FirstName)
	assert.Equal(t, "Grace", *view.FirstName)

	w = s.do(t, http.MethodPut, "/user/edit/9999", map[string]interface{}{"firstName": "X"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/user/edit/%d", choID), map[string]interface{}{"password": "x"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_OverlongFieldsAreBadRequest(t *testing.T) {
	s := newTestServer(t)

	bodies := map[string]map[string]string{
		"firstName": {"email": "a@example.com", "password": "secret", "firstName": strings.Repeat("f", 26)},
		"password":  {"email": "a@example.com", "password": strings.Repeat("p", 80)},
	}
	for field, body := range bodies {
		t.Run(field, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/user/register", body, "")
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var resp struct {
				Fields []struct {
					Field string `json:"field"`
					Rule  string `json:"rule"`
				} `json:"fields"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp.Fields, 1)
			assert.Equal(t, field, resp.Fields[0].Field)
			assert.Equal(t, "max", resp.Fields[0].Rule)
		})
	}

	w := s.do(t, http.MethodPut, "/user/edit/1", map[string]string{"firstName": strings.Repeat("f", 26)}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
