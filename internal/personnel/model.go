package personnel

import (
	"errors"
	"time"
)

// Department is the team a member of staff belongs to.
type Department string

const (
	DepartmentSales           Department = "sales"
	DepartmentTechnical       Department = "technical"
	DepartmentCustomerService Department = "customer_service"
)

func (d Department) Valid() bool {
	switch d {
	case DepartmentSales, DepartmentTechnical, DepartmentCustomerService:
		return true
	}
	return false
}

var (
	ErrNotFound     = errors.New("personnel not found")
	ErrInvalidInput = errors.New("invalid personnel input")
)

// Personnel is the staff profile attached to an account.
type Personnel struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"accountId"`
	EmployeeCode string     `json:"employeeCode,omitempty"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Department   Department `json:"department"`
	Position     string     `json:"position"`
	Active       bool       `json:"active"`
	Manager      bool       `json:"manager"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FullName joins first and last name.
func (p Personnel) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ProfileUpdate holds the fields staff may edit on their own profile.
type ProfileUpdate struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Position  string `json:"position"`
}
