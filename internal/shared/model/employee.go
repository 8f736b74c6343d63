package model

import (
	"fmt"
	"regexp"
	"time"
)

// employeeIDPattern 员工编号格式：数字/大写字母/数字，如 2024/IAS/17
var employeeIDPattern = regexp.MustCompile(`^\d+/[A-Z]+/\d+$`)

// IsEmployeeIdentifier 判断字符串是否为员工编号
func IsEmployeeIdentifier(s string) bool {
	return employeeIDPattern.MatchString(s)
}

// FormatEmployeeID 根据入职年份、Cadre 代码和序号生成员工编号
func FormatEmployeeID(year int, cadreCode string, seq int64) string {
	return fmt.Sprintf("%d/%s/%d", year, cadreCode, seq)
}

// Employee 员工档案
//
// 与 User 一对一（可选）：注册阶段 User 可以尚未关联 Employee。
type Employee struct {
	ID               string     `json:"id" db:"id" bson:"_id"`
	UserID           *string    `json:"user_id,omitempty" db:"user_id" bson:"user_id"`
	EmployeeID       string     `json:"employee_id" db:"employee_id" bson:"employee_id"`
	CadreID          *string    `json:"cadre_id,omitempty" db:"cadre_id" bson:"cadre_id"`
	FirstName        string     `json:"first_name" db:"first_name" bson:"first_name"`
	MiddleName       string     `json:"middle_name,omitempty" db:"middle_name" bson:"middle_name"`
	LastName         string     `json:"last_name" db:"last_name" bson:"last_name"`
	FatherName       string     `json:"father_name,omitempty" db:"father_name" bson:"father_name"`
	Gender           string     `json:"gender,omitempty" db:"gender" bson:"gender"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth" bson:"date_of_birth"`
	DateOfJoining    *time.Time `json:"date_of_joining,omitempty" db:"date_of_joining" bson:"date_of_joining"`
	DateOfRetirement *time.Time `json:"date_of_retirement,omitempty" db:"date_of_retirement" bson:"date_of_retirement"`
	Designation      string     `json:"designation" db:"designation" bson:"designation"`
	Department       string     `json:"department" db:"department" bson:"department"`
	PayLevel         string     `json:"pay_level,omitempty" db:"pay_level" bson:"pay_level"`
	CurrentPosting   string     `json:"current_posting,omitempty" db:"current_posting" bson:"current_posting"`
	PlaceOfPosting   string     `json:"place_of_posting,omitempty" db:"place_of_posting" bson:"place_of_posting"`
	District         string     `json:"district,omitempty" db:"district" bson:"district"`
	State            string     `json:"state,omitempty" db:"state" bson:"state"`
	AddressLine1     string     `json:"address_line1,omitempty" db:"address_line1" bson:"address_line1"`
	AddressLine2     string     `json:"address_line2,omitempty" db:"address_line2" bson:"address_line2"`
	City             string     `json:"city,omitempty" db:"city" bson:"city"`
	PinCode          string     `json:"pin_code,omitempty" db:"pin_code" bson:"pin_code"`
	MobileNumber     string     `json:"mobile_number,omitempty" db:"mobile_number" bson:"mobile_number"`
	Email            string     `json:"email,omitempty" db:"email" bson:"email"`
	Category         string     `json:"category,omitempty" db:"category" bson:"category"`
	Qualification    string     `json:"qualification,omitempty" db:"qualification" bson:"qualification"`
	HomeDistrict     string     `json:"home_district,omitempty" db:"home_district" bson:"home_district"`
	Remarks          string     `json:"remarks,omitempty" db:"remarks" bson:"remarks"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// FullName 拼接姓名
func (e *Employee) FullName() string {
	name := e.FirstName
	if e.MiddleName != "" {
		name += " " + e.MiddleName
	}
	if e.LastName != "" {
		name += " " + e.LastName
	}
	return name
}

// EmployeeFilter 员工列表过滤条件
type EmployeeFilter struct {
	CadreID    string
	CadreIDs   []string // 非空时限定在这些 Cadre 内（Cadre 主管视角）
	Department string
	Limit      int
	Offset     int
}
