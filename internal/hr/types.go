package hr

import (
	"strconv"
	"time"
)

type Company struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Name      string    `json:"nombre"`
	TaxID     string    `json:"cif,omitempty"`
	Address   string    `json:"direccion,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CompanyInput struct {
	Name    string
	TaxID   string
	Address string
}

type Employee struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"empresaId"`
	Code        string    `json:"codigo"`
	NationalID  string    `json:"dni,omitempty"`
	Name        string    `json:"nombre"`
	Email       string    `json:"email,omitempty"`
	Position    string    `json:"puesto,omitempty"`
	Active      bool      `json:"activo"`
	HasPassword bool      `json:"tienePassword"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MaxNumericCodeDigits bounds all-digit employee codes chosen by an owner.
const MaxNumericCodeDigits = 9

// SequentialDigits bounds the all-digit values code generation counts. It is
// one wider than MaxNumericCodeDigits so generated codes past 999999999 keep
// counting.
const SequentialDigits = MaxNumericCodeDigits + 1

// SequentialValue is the number an all-digit value of at most SequentialDigits
// contributes to code generation.
func SequentialValue(code string) (int64, bool) {
	if code == "" || len(code) > SequentialDigits {
		return 0, false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(code, 10, 64)
	return n, err == nil
}

// NewEmployee is a hire. Empty Code takes the next sequential code.
type NewEmployee struct {
	CompanyID    string
	Code         string
	NationalID   string
	Name         string
	Email        string
	Position     string
	PasswordHash string
}

// EmployeeUpdate carries optional changes; nil fields are left alone.
type EmployeeUpdate struct {
	CompanyID    *string
	Code         *string
	NationalID   *string
	Name         *string
	Email        *string
	Position     *string
	Active       *bool
	Password     *string
	PasswordHash *string
}

type Project struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"empresaId"`
	Name        string    `json:"nombre"`
	Description string    `json:"descripcion,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ProjectInput struct {
	Name        string
	Description string
}

const (
	AttendanceIn  = "entrada"
	AttendanceOut = "salida"
)

type Attendance struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"empleadoId"`
	Type       string    `json:"tipo"`
	RecordedAt time.Time `json:"fecha"`
	Note       string    `json:"nota,omitempty"`
}

const (
	RequestPending  = "pendiente"
	RequestApproved = "aprobada"
	RequestRejected = "rechazada"
)

type Request struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"empleadoId"`
	Type        string    `json:"tipo"`
	Description string    `json:"descripcion,omitempty"`
	Status      string    `json:"estado"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Document struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"empleadoId"`
	Title      string    `json:"titulo"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Task struct {
	ID          string    `json:"id"`
	EmployeeID  string    `json:"empleadoId"`
	Title       string    `json:"titulo"`
	Description string    `json:"descripcion,omitempty"`
	Done        bool      `json:"completada"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Done        *bool
}
