package employee

import (
	"fmt"
	"strings"
	"time"

	"cadre-portal/internal/shared/model"
)

// employeeInput 创建/更新员工请求体（日期为 YYYY-MM-DD 或 RFC3339）
type employeeInput struct {
	UserID           *string `json:"user_id"`
	EmployeeID       string  `json:"employee_id"`
	CadreID          *string `json:"cadre_id"`
	FirstName        string  `json:"first_name"`
	MiddleName       string  `json:"middle_name"`
	LastName         string  `json:"last_name"`
	FatherName       string  `json:"father_name"`
	Gender           string  `json:"gender"`
	DateOfBirth      string  `json:"date_of_birth"`
	DateOfJoining    string  `json:"date_of_joining"`
	DateOfRetirement string  `json:"date_of_retirement"`
	Designation      string  `json:"designation"`
	Department       string  `json:"department"`
	PayLevel         string  `json:"pay_level"`
	CurrentPosting   string  `json:"current_posting"`
	PlaceOfPosting   string  `json:"place_of_posting"`
	District         string  `json:"district"`
	State            string  `json:"state"`
	AddressLine1     string  `json:"address_line1"`
	AddressLine2     string  `json:"address_line2"`
	City             string  `json:"city"`
	PinCode          string  `json:"pin_code"`
	MobileNumber     string  `json:"mobile_number"`
	Email            string  `json:"email"`
	Category         string  `json:"category"`
	Qualification    string  `json:"qualification"`
	HomeDistrict     string  `json:"home_district"`
	Remarks          string  `json:"remarks"`
}

// parseDate 解析可选日期，空字符串返回 nil
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD)", field)
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// apply 校验输入并写入 e（不修改 ID 与时间戳）
func (in *employeeInput) apply(e *model.Employee) error {
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("first_name is required")
	}
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)
	if in.EmployeeID != "" && !model.IsEmployeeIdentifier(in.EmployeeID) {
		return fmt.Errorf("employee_id must look like 2024/IAS/17")
	}

	dob, err := parseDate("date_of_birth", in.DateOfBirth)
	if err != nil {
		return err
	}
	doj, err := parseDate("date_of_joining", in.DateOfJoining)
	if err != nil {
		return err
	}
	dor, err := parseDate("date_of_retirement", in.DateOfRetirement)
	if err != nil {
		return err
	}
	if doj != nil && dor != nil && dor.Before(*doj) {
		return fmt.Errorf("date_of_retirement must not be before date_of_joining")
	}

	e.UserID = emptyToNil(in.UserID)
	e.EmployeeID = in.EmployeeID
	e.CadreID = emptyToNil(in.CadreID)
	e.FirstName = strings.TrimSpace(in.FirstName)
	e.MiddleName = strings.TrimSpace(in.MiddleName)
	e.LastName = strings.TrimSpace(in.LastName)
	e.FatherName = in.FatherName
	e.Gender = in.Gender
	e.DateOfBirth = dob
	e.DateOfJoining = doj
	e.DateOfRetirement = dor
	e.Designation = in.Designation
	e.Department = strings.TrimSpace(in.Department)
	e.PayLevel = in.PayLevel
	e.CurrentPosting = in.CurrentPosting
	e.PlaceOfPosting = in.PlaceOfPosting
	e.District = in.District
	e.State = in.State
	e.AddressLine1 = in.AddressLine1
	e.AddressLine2 = in.AddressLine2
	e.City = in.City
	e.PinCode = in.PinCode
	e.MobileNumber = in.MobileNumber
	e.Email = strings.ToLower(strings.TrimSpace(in.Email))
	e.Category = in.Category
	e.Qualification = in.Qualification
	e.HomeDistrict = in.HomeDistrict
	e.Remarks = in.Remarks
	return nil
}
