package ownership

import (
	"context"
	"errors"
	"strings"

	"asistencia.org/internal/auth"
)

// Graph exposes the foreign keys of stored rows. Column returns the value of
// column on the row of kind with id; ok is false when the row does not exist.
type Graph interface {
	Column(ctx context.Context, kind Kind, id, column string) (value string, ok bool, err error)
}

// Walker resolves ownership hop by hop over a Graph, following the same
// descriptors as SQLResolver. Used by stores without SQL joins.
type Walker struct {
	graph Graph
}

func NewWalker(g Graph) *Walker {
	return &Walker{graph: g}
}

var _ Resolver = (*Walker)(nil)

func (w *Walker) Resolve(ctx context.Context, identity auth.Identity, kind Kind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return auth.ErrNotFound
	}
	switch {
	case identity.IsOwner():
		return w.resolveOwner(ctx, identity.ID, kind, id)
	case identity.IsEmployee():
		return w.resolveEmployee(ctx, identity.ID, kind, id)
	default:
		return auth.ErrUnauthorized
	}
}

func (w *Walker) resolveOwner(ctx context.Context, ownerID string, kind Kind, id string) error {
	chain, err := Chain(kind)
	if err != nil {
		return err
	}
	cur := id
	k := kind
	for _, d := range chain {
		column := d.ParentColumn
		if d.root() {
			column = d.OwnerColumn
		}
		next, ok, err := w.graph.Column(ctx, k, cur, column)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ErrNotFound
		}
		cur, k = next, d.Parent
	}
	if cur != ownerID {
		return auth.ErrNotFound
	}
	return nil
}

func (w *Walker) resolveEmployee(ctx context.Context, employeeID string, kind Kind, id string) error {
	if kind == KindEmployee {
		if _, ok, err := w.graph.Column(ctx, KindEmployee, id, "id"); err != nil {
			return err
		} else if !ok || id != employeeID {
			return auth.ErrNotFound
		}
		return nil
	}
	if _, err := EmployeeQuery(kind); err != nil {
		if errors.Is(err, errNotEmployeeScoped) {
			return auth.ErrNotFound
		}
		return err
	}
	d := descriptors[kind]
	owner, ok, err := w.graph.Column(ctx, kind, id, d.ParentColumn)
	if err != nil {
		return err
	}
	if !ok || owner != employeeID {
		return auth.ErrNotFound
	}
	return nil
}
