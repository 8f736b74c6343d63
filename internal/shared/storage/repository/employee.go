package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cadre-portal/internal/shared/model"
	"cadre-portal/internal/shared/storage/dbutil"
)

// employeeColumns 列顺序与 employeeArgs / scanEmployee 一一对应
var employeeColumns = []string{
	"id", "user_id", "employee_id", "cadre_id",
	"first_name", "middle_name", "last_name", "father_name", "gender",
	"date_of_birth", "date_of_joining", "date_of_retirement",
	"designation", "department", "pay_level", "current_posting", "place_of_posting",
	"district", "state", "address_line1", "address_line2", "city", "pin_code",
	"mobile_number", "email", "category", "qualification", "home_district", "remarks",
	"created_at", "updated_at",
}

var employeeSelect = "SELECT " + strings.Join(employeeColumns, ", ") + " FROM employees"

func employeeArgs(e *model.Employee) []any {
	return []any{
		e.ID, nullString(e.UserID), e.EmployeeID, nullString(e.CadreID),
		e.FirstName, e.MiddleName, e.LastName, e.FatherName, e.Gender,
		utcPtr(e.DateOfBirth), utcPtr(e.DateOfJoining), utcPtr(e.DateOfRetirement),
		e.Designation, e.Department, e.PayLevel, e.CurrentPosting, e.PlaceOfPosting,
		e.District, e.State, e.AddressLine1, e.AddressLine2, e.City, e.PinCode,
		e.MobileNumber, e.Email, e.Category, e.Qualification, e.HomeDistrict, e.Remarks,
		utc(e.CreatedAt), utc(e.UpdatedAt),
	}
}

func scanEmployee(row interface{ Scan(...any) error }) (*model.Employee, error) {
	e := &model.Employee{}
	var userID, cadreID sql.NullString
	var dob, doj, dor sql.NullTime
	if err := row.Scan(
		&e.ID, &userID, &e.EmployeeID, &cadreID,
		&e.FirstName, &e.MiddleName, &e.LastName, &e.FatherName, &e.Gender,
		&dob, &doj, &dor,
		&e.Designation, &e.Department, &e.PayLevel, &e.CurrentPosting, &e.PlaceOfPosting,
		&e.District, &e.State, &e.AddressLine1, &e.AddressLine2, &e.City, &e.PinCode,
		&e.MobileNumber, &e.Email, &e.Category, &e.Qualification, &e.HomeDistrict, &e.Remarks,
		&e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.UserID = stringPtr(userID)
	e.CadreID = stringPtr(cadreID)
	e.DateOfBirth = timePtr(dob)
	e.DateOfJoining = timePtr(doj)
	e.DateOfRetirement = timePtr(dor)
	return e, nil
}

func (s *Store) getEmployee(ctx context.Context, where string, arg any) (*model.Employee, error) {
	e, err := scanEmployee(s.db.QueryRowContext(ctx, s.rebind(employeeSelect+" WHERE "+where), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// CreateEmployee 创建员工档案
func (s *Store) CreateEmployee(ctx context.Context, e *model.Employee) error {
	query := fmt.Sprintf("INSERT INTO employees (%s) VALUES (%s)",
		strings.Join(employeeColumns, ", "), dbutil.PlaceholderList(1, len(employeeColumns)))
	_, err := s.exec(ctx, query, employeeArgs(e)...)
	return err
}

// GetEmployee 通过主键查找员工
func (s *Store) GetEmployee(ctx context.Context, id string) (*model.Employee, error) {
	return s.getEmployee(ctx, "id = $1", id)
}

// GetEmployeeByUserID 查找用户关联的员工档案
func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (*model.Employee, error) {
	return s.getEmployee(ctx, "user_id = $1", userID)
}

// GetEmployeeByEmployeeID 通过员工编号查找
func (s *Store) GetEmployeeByEmployeeID(ctx context.Context, employeeID string) (*model.Employee, error) {
	return s.getEmployee(ctx, "employee_id = $1", employeeID)
}

// ListEmployees 按过滤条件列出员工
func (s *Store) ListEmployees(ctx context.Context, filter model.EmployeeFilter) ([]*model.Employee, error) {
	var conds []string
	var args []any

	if filter.CadreID != "" {
		args = append(args, filter.CadreID)
		conds = append(conds, fmt.Sprintf("cadre_id = $%d", len(args)))
	}
	if len(filter.CadreIDs) > 0 {
		conds = append(conds, fmt.Sprintf("cadre_id IN (%s)",
			dbutil.PlaceholderList(len(args)+1, len(filter.CadreIDs))))
		for _, id := range filter.CadreIDs {
			args = append(args, id)
		}
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}

	query := employeeSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY employee_id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*model.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdateEmployee 全量更新员工档案（created_at 除外）
func (s *Store) UpdateEmployee(ctx context.Context, e *model.Employee) error {
	all := employeeArgs(e)
	// 跳过 id 与 created_at，id 放到最后作为 WHERE 参数
	var sets []string
	var args []any
	for i, col := range employeeColumns {
		if col == "id" || col == "created_at" {
			continue
		}
		args = append(args, all[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, e.ID)
	query := fmt.Sprintf("UPDATE employees SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return s.execOne(ctx, query, args...)
}

// DeleteEmployee 删除员工档案
func (s *Store) DeleteEmployee(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM employees WHERE id = $1`, id)
}

// ListDepartments 去重后的部门列表
func (s *Store) ListDepartments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT department FROM employees WHERE department <> '' ORDER BY department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountEmployees 员工总数
func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`).Scan(&n)
	return n, err
}
