package openapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/api"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := Load(api.OpenAPIFS, api.SpecFile)
	require.NoError(t, err)
	return v
}

// echo 记录下游是否被调用，并回显请求体
func echo(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

func TestLoadEmbeddedSpec(t *testing.T) {
	v := newValidator(t)
	assert.Equal(t, "Cadre Portal API", v.Document().Info.Title)
	assert.NotNil(t, v.Document().Paths.Find("/api/v1/auth/forgot-password"))
}

// 含逗号的响应描述必须整体保留，不能被拆成额外字段
func TestLoadEmbeddedSpec_DescriptionsWithCommas(t *testing.T) {
	doc := newValidator(t).Document()

	tests := []struct {
		path   string
		method string
		status int
		want   string
	}{
		{"/api/v1/auth/register", http.MethodPost, http.StatusCreated, "User created, signup code issued"},
		{"/api/v1/auth/verify-reset-otp", http.MethodPost, http.StatusOK, "Code accepted, password reset allowed"},
		{"/api/v1/cadres/{id}", http.MethodDelete, http.StatusNoContent, "Cadre deleted, members unassigned"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			item := doc.Paths.Find(tt.path)
			require.NotNil(t, item)
			op := item.GetOperation(tt.method)
			require.NotNil(t, op)
			resp := op.Responses.Status(tt.status)
			require.NotNil(t, resp)
			require.NotNil(t, resp.Value.Description)
			assert.Equal(t, tt.want, *resp.Value.Description)
		})
	}
}

func TestNew_InvalidDocument(t *testing.T) {
	_, err := New([]byte("openapi: 3.0.3\ninfo: {}\npaths: {}\n"))
	assert.Error(t, err)
	_, err = New([]byte(":::"))
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantNext   bool
	}{
		{"valid body", http.MethodPost, "/api/v1/auth/forgot-password", `{"identifier":"user@example.com"}`, http.StatusOK, true},
		{"missing field", http.MethodPost, "/api/v1/auth/forgot-password", `{}`, http.StatusBadRequest, false},
		{"wrong type", http.MethodPost, "/api/v1/auth/verify-otp", `{"email":"a@b.c","otp":123456}`, http.StatusBadRequest, false},
		{"empty body", http.MethodPost, "/api/v1/auth/login", ``, http.StatusBadRequest, false},
		{"bad query", http.MethodGet, "/api/v1/employees?limit=abc", ``, http.StatusBadRequest, false},
		{"limit too large", http.MethodGet, "/api/v1/export/employees.csv?limit=501", ``, http.StatusBadRequest, false},
		{"valid query", http.MethodGet, "/api/v1/employees?limit=10&department=Home", ``, http.StatusOK, true},
		{"undeclared path", http.MethodGet, "/dashboard", ``, http.StatusOK, true},
		{"undeclared method", http.MethodPatch, "/api/v1/cadres", `{}`, http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			v.Middleware(echo(&called)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantNext, called)
			if !tt.wantNext {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp["error"])
			}
		})
	}
}

func TestMiddleware_BodyStillReadable(t *testing.T) {
	v := newValidator(t)
	var called bool
	body := `{"identifier":"2024/IAS/17","otp":"123456"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-reset-otp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	v.Middleware(echo(&called)).ServeHTTP(rec, req)

	require.True(t, called)
	assert.JSONEq(t, body, rec.Body.String())
}

func TestServeSpec(t *testing.T) {
	v := newValidator(t)
	rec := httptest.NewRecorder()
	v.ServeSpec(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}
