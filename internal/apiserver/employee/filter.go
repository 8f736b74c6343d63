package employee

import (
	"fmt"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"cadre-portal/internal/shared/model"
)

// MaxPageSize 单次列表最大条数
const MaxPageSize = 500

// ListParams 员工列表查询参数
type ListParams struct {
	CadreID    *string `form:"cadre_id"`
	Department *string `form:"department"`
	Limit      *int    `form:"limit"`
	Offset     *int    `form:"offset"`
}

// ParseFilter 解析员工列表/导出共用的查询参数
func ParseFilter(r *http.Request) (model.EmployeeFilter, error) {
	var params ListParams
	q := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "cadre_id", q, &params.CadreID); err != nil {
		return model.EmployeeFilter{}, fmt.Errorf("invalid cadre_id: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "department", q, &params.Department); err != nil {
		return model.EmployeeFilter{}, fmt.Errorf("invalid department: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &params.Limit); err != nil {
		return model.EmployeeFilter{}, fmt.Errorf("invalid limit: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", q, &params.Offset); err != nil {
		return model.EmployeeFilter{}, fmt.Errorf("invalid offset: %w", err)
	}

	var f model.EmployeeFilter
	if params.CadreID != nil {
		f.CadreID = *params.CadreID
	}
	if params.Department != nil {
		f.Department = *params.Department
	}
	if params.Limit != nil {
		if *params.Limit < 0 || *params.Limit > MaxPageSize {
			return model.EmployeeFilter{}, fmt.Errorf("limit must be between 0 and %d", MaxPageSize)
		}
		f.Limit = *params.Limit
	}
	if params.Offset != nil {
		if *params.Offset < 0 {
			return model.EmployeeFilter{}, fmt.Errorf("offset must not be negative")
		}
		f.Offset = *params.Offset
	}
	return f, nil
}
