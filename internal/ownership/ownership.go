// Package ownership decides whether a resource id is reachable from an identity
// through its foreign-key chain (resource -> ... -> empresa -> usuario).
//
// Mismatch and absence are the same outcome: auth.ErrNotFound.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asistencia.org/internal/auth"
)

// Kind names a resource type with an ownership chain.
type Kind string

const (
	KindCompany       Kind = "empresa"
	KindEmployee      Kind = "empleado"
	KindProject       Kind = "proyecto"
	KindAttendance    Kind = "asistencia"
	KindRequest       Kind = "solicitud"
	KindDocumentation Kind = "documentacion"
	KindTask          Kind = "tarea"
)

// Descriptor declares one link of a chain. A root descriptor has OwnerColumn set;
// any other points at its Parent through ParentColumn.
type Descriptor struct {
	Table        string
	ParentColumn string
	Parent       Kind
	OwnerColumn  string
}

func (d Descriptor) root() bool { return d.OwnerColumn != "" }

var descriptors = map[Kind]Descriptor{
	KindCompany:       {Table: "empresas", OwnerColumn: "usuario_id"},
	KindEmployee:      {Table: "empleados", ParentColumn: "empresa_id", Parent: KindCompany},
	KindProject:       {Table: "proyectos", ParentColumn: "empresa_id", Parent: KindCompany},
	KindAttendance:    {Table: "asistencias", ParentColumn: "empleado_id", Parent: KindEmployee},
	KindRequest:       {Table: "solicitudes", ParentColumn: "empleado_id", Parent: KindEmployee},
	KindDocumentation: {Table: "documentacion", ParentColumn: "empleado_id", Parent: KindEmployee},
	KindTask:          {Table: "tareas", ParentColumn: "empleado_id", Parent: KindEmployee},
}

// Lookup returns the descriptor registered for kind.
func Lookup(kind Kind) (Descriptor, bool) {
	d, ok := descriptors[kind]
	return d, ok
}

// Chain returns the descriptors from kind up to the root, kind first.
func Chain(kind Kind) ([]Descriptor, error) {
	var chain []Descriptor
	seen := map[Kind]bool{}
	for k := kind; ; {
		d, ok := descriptors[k]
		if !ok {
			return nil, fmt.Errorf("ownership: unknown kind %q", k)
		}
		if seen[k] {
			return nil, fmt.Errorf("ownership: cycle at %q", k)
		}
		seen[k] = true
		chain = append(chain, d)
		if d.root() {
			return chain, nil
		}
		k = d.Parent
	}
}

// Depth is the number of hops from kind to the owner.
func Depth(kind Kind) int {
	chain, err := Chain(kind)
	if err != nil {
		return 0
	}
	return len(chain)
}

// OwnedQuery renders a single statement selecting id when the row with id $1
// belongs to owner $2. It can be used standalone or as an "id in (...)" subquery.
func OwnedQuery(kind Kind) (string, error) {
	chain, err := Chain(kind)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "select t0.id from %s t0", chain[0].Table)
	for i := 1; i < len(chain); i++ {
		fmt.Fprintf(&b, " join %s t%d on t%d.id = t%d.%s", chain[i].Table, i, i, i-1, chain[i-1].ParentColumn)
	}
	last := len(chain) - 1
	fmt.Fprintf(&b, " where t0.id = $1 and t%d.%s = $2", last, chain[last].OwnerColumn)
	return b.String(), nil
}

// EmployeeQuery renders the employee-identity variant: the row with id $1 must
// point directly at employee $2. Only kinds whose parent is the employee qualify.
func EmployeeQuery(kind Kind) (string, error) {
	if kind == KindEmployee {
		return "select t0.id from empleados t0 where t0.id = $1 and t0.id = $2", nil
	}
	d, ok := descriptors[kind]
	if !ok {
		return "", fmt.Errorf("ownership: unknown kind %q", kind)
	}
	if d.Parent != KindEmployee {
		return "", errNotEmployeeScoped
	}
	return fmt.Sprintf("select t0.id from %s t0 where t0.id = $1 and t0.%s = $2", d.Table, d.ParentColumn), nil
}

var errNotEmployeeScoped = errors.New("ownership: kind not reachable from an employee identity")

// Resolver answers whether identity may act on a resource.
type Resolver interface {
	Resolve(ctx context.Context, identity auth.Identity, kind Kind, id string) error
}
