// Package export 员工列表导出接口（CSV / PDF）
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"cadre-portal/internal/apiserver/auth"
	"cadre-portal/internal/apiserver/employee"
	"cadre-portal/internal/shared/export"
	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/objstore"
	"cadre-portal/internal/shared/storage"
	"cadre-portal/pkg/logging"
)

// Store 导出所需的存储
type Store interface {
	storage.EmployeeStore
	employee.CadreLister
	ListCadres(ctx context.Context) ([]*model.Cadre, error)
}

// Handler 导出处理器
type Handler struct {
	store    Store
	archiver objstore.Archiver // 可选；nil 表示不归档
	now      func() time.Time
	logger   *logging.Logger
}

// NewHandler 创建导出处理器
func NewHandler(store Store, archiver objstore.Archiver) *Handler {
	return &Handler{store: store, archiver: archiver, now: time.Now, logger: logging.Default("export")}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/export/employees.csv", h.CSV)
	mux.HandleFunc("GET /api/v1/export/employees.pdf", h.PDF)
}

// CSV 导出 CSV
func (h *Handler) CSV(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, export.FormatCSV)
}

// PDF 导出 PDF
func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, export.FormatPDF)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, format string) {
	ctx := r.Context()
	started := time.Now()
	filter, err := employee.ParseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scope, err := employee.ResolveScope(ctx, h.store, auth.IdentityFromContext(ctx))
	if err != nil {
		log.Printf("[export] resolve scope error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	queryStart := time.Now()
	employees, err := employee.List(ctx, h.store, scope, filter)
	h.logger.WithContext(ctx).DBQueryLog("list", "employees", time.Since(queryStart), err)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	names, err := h.cadreNames(ctx)
	if err != nil {
		log.Printf("[export] ListCadres error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := h.now()
	var buf bytes.Buffer
	switch format {
	case export.FormatPDF:
		err = export.WritePDF(&buf, employees, names, export.PDFOptions{GeneratedAt: now})
	default:
		err = export.WriteCSV(&buf, employees, names)
	}
	if err != nil {
		log.Printf("[export] render %s error: %v", format, err)
		writeError(w, http.StatusInternalServerError, "failed to generate export")
		return
	}

	contentType := export.ContentType(format)
	if h.archiver != nil {
		key, err := h.archiver.Archive(ctx, format, contentType, buf.Bytes())
		if err != nil {
			log.Printf("[export] archive error: %v", err)
		} else {
			log.Printf("[export] Archived %d employees to %s", len(employees), key)
		}
	}

	h.logger.WithContext(ctx).WithDuration(time.Since(started)).Info("Export generated", "format", format, "rows", len(employees), "bytes", buf.Len())

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="employees-%s.%s"`, now.Format("20060102"), format))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) cadreNames(ctx context.Context) (export.CadreNames, error) {
	cadres, err := h.store.ListCadres(ctx)
	if err != nil {
		return nil, err
	}
	names := make(export.CadreNames, len(cadres))
	for _, c := range cadres {
		names[c.ID] = c.Name
	}
	return names, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
