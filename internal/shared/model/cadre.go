package model

import (
	"regexp"
	"time"
)

var cadreCodePattern = regexp.MustCompile(`^[A-Z]+$`)

// ValidCadreCode Cadre 代码只允许大写字母
func ValidCadreCode(code string) bool {
	return cadreCodePattern.MatchString(code)
}

// Cadre 行政编组
//
// Sequence 只增不减，用于生成 Cadre 内连续的员工编号。
type Cadre struct {
	ID                    string    `json:"id" db:"id" bson:"_id"`
	Name                  string    `json:"name" db:"name" bson:"name"`
	Code                  string    `json:"code" db:"code" bson:"code"`
	ControllingAuthority  string    `json:"controlling_authority" db:"controlling_authority" bson:"controlling_authority"`
	ControllingDepartment *string   `json:"controlling_department,omitempty" db:"controlling_department" bson:"controlling_department"`
	ControllingUserID     *string   `json:"controlling_user_id,omitempty" db:"controlling_user_id" bson:"controlling_user_id"`
	Sequence              int64     `json:"sequence" db:"sequence" bson:"sequence"`
	CreatedAt             time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`

	Employees []*Employee `json:"employees,omitempty" db:"-" bson:"-"`
}

// CadreCount 每个 Cadre 的员工数（仪表盘）
type CadreCount struct {
	CadreID   string `json:"cadre_id"`
	CadreName string `json:"cadre_name"`
	Employees int    `json:"employees"`
}
