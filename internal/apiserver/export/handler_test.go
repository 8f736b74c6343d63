package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage/factory"
	"cadre-portal/internal/shared/storage/repository"
)

type archived struct {
	ext, contentType string
	size             int
}

type fakeArchiver struct {
	calls []archived
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, ext, contentType string, data []byte) (string, error) {
	f.calls = append(f.calls, archived{ext, contentType, len(data)})
	if f.err != nil {
		return "", f.err
	}
	return "exports/2024/06/x." + ext, nil
}

var (
	admin     = &auth.Identity{ID: "u-admin", Email: "admin@example.com", Role: model.UserRoleAdmin}
	authority = &auth.Identity{ID: "u-cca", Email: "cca@example.com", Role: model.UserRoleCadreControllingAuthority}
	cm        = &auth.Identity{ID: "u-cm", Email: "cm@example.com", Role: model.UserRoleCM}
)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := factory.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := time.Now()
	for _, id := range []*auth.Identity{admin, authority, cm} {
		require.NoError(t, store.CreateUser(ctx, &model.User{
			ID: id.ID, Email: id.Email, Username: id.ID, PasswordHash: "x", Role: id.Role,
			VerificationStatus: model.VerificationVerified, IsVerified: true, CreatedAt: now, UpdatedAt: now,
		}))
	}
	cca := authority.ID
	require.NoError(t, store.CreateCadre(ctx, &model.Cadre{ID: "c-ias", Name: "Indian Administrative Service", Code: "IAS",
		ControllingAuthority: "Chief Secretary", ControllingUserID: &cca, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.CreateCadre(ctx, &model.Cadre{ID: "c-ips", Name: "Indian Police Service", Code: "IPS",
		ControllingAuthority: "Home Secretary", CreatedAt: now, UpdatedAt: now}))

	ias, ips := "c-ias", "c-ips"
	require.NoError(t, store.CreateEmployee(ctx, &model.Employee{ID: "e-1", EmployeeID: "2020/IAS/1", CadreID: &ias,
		FirstName: "Asha", Department: "Revenue", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, store.CreateEmployee(ctx, &model.Employee{ID: "e-2", EmployeeID: "2021/IPS/1", CadreID: &ips,
		FirstName: "Vikram", Department: "Home", CreatedAt: now, UpdatedAt: now}))
	return store
}

func get(t *testing.T, h *Handler, id *auth.Identity, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func readCSV(t *testing.T, rec *httptest.ResponseRecorder) [][]string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportCSV(t *testing.T) {
	h := NewHandler(newStore(t), nil)
	h.now = func() time.Time { return time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC) }

	rec := get(t, h, admin, "/api/v1/export/employees.csv")
	records := readCSV(t, rec)
	assert.Len(t, records, 3)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="employees-20240603.csv"`, rec.Header().Get("Content-Disposition"))

	// 过滤参数与列表接口一致
	records = readCSV(t, get(t, h, cm, "/api/v1/export/employees.csv?department=Home"))
	require.Len(t, records, 2)
	assert.Equal(t, "2021/IPS/1", records[1][0])

	assert.Equal(t, http.StatusBadRequest, get(t, h, admin, "/api/v1/export/employees.csv?limit=abc").Code)
}

func TestExportCSV_AuthorityScope(t *testing.T) {
	h := NewHandler(newStore(t), nil)
	records := readCSV(t, get(t, h, authority, "/api/v1/export/employees.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "2020/IAS/1", records[1][0])
	assert.Contains(t, records[1], "Indian Administrative Service")

	// 没有主管 Cadre 时只有表头
	records = readCSV(t, get(t, h, &auth.Identity{ID: "u-none", Role: model.UserRoleCadreControllingAuthority},
		"/api/v1/export/employees.csv"))
	assert.Len(t, records, 1)
}

func TestExportPDF_Archived(t *testing.T) {
	arch := &fakeArchiver{}
	h := NewHandler(newStore(t), arch)

	rec := get(t, h, admin, "/api/v1/export/employees.pdf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	require.Len(t, arch.calls, 1)
	assert.Equal(t, "pdf", arch.calls[0].ext)
	assert.Equal(t, "application/pdf", arch.calls[0].contentType)
	assert.Equal(t, rec.Body.Len(), arch.calls[0].size)
}

func TestExport_ArchiveFailureDoesNotFailDownload(t *testing.T) {
	arch := &fakeArchiver{err: errors.New("bucket unavailable")}
	h := NewHandler(newStore(t), arch)

	records := readCSV(t, get(t, h, admin, "/api/v1/export/employees.csv"))
	assert.Len(t, records, 3)
	assert.Len(t, arch.calls, 1)
}
