package pipeline

import (
	"fmt"
	"strings"

	"companystatus/frame"
)

// SchemaMismatchError lists schema features an input lacks when the schema
// is strict.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("input is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ReconcileStep 对齐步骤
type ReconcileStep interface {
	Apply(*frame.Table) (*frame.Table, error)
	Name() string
}

// Reconciler reshapes arbitrary input tables to a schema's exact columns.
type Reconciler struct {
	schema *Schema
	steps  []ReconcileStep
}

// NewReconciler 创建对齐器
func NewReconciler(schema *Schema) *Reconciler {
	r := &Reconciler{schema: schema}

	r.steps = append(r.steps, &FillDefaultsStep{Schema: schema})
	if schema.Strict() {
		r.steps = append(r.steps, &RequireColumnsStep{Columns: schema.Names()})
	}
	r.steps = append(r.steps, &ProjectStep{Columns: schema.Names()})

	return r
}

// Reconcile returns a new table whose columns are exactly the schema's
// features in order. input is not modified and row order is preserved.
func (r *Reconciler) Reconcile(input *frame.Table) (*frame.Table, error) {
	t := input.Clone()
	for _, step := range r.steps {
		next, err := step.Apply(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		t = next
	}
	return t, nil
}

// FillDefaultsStep adds every default-configured column the table lacks,
// holding the default in every row.
type FillDefaultsStep struct {
	Schema *Schema
}

func (s *FillDefaultsStep) Name() string {
	return "fill_defaults"
}

func (s *FillDefaultsStep) Apply(t *frame.Table) (*frame.Table, error) {
	for _, name := range s.Schema.DefaultColumns() {
		if t.HasColumn(name) {
			continue
		}
		value, _ := s.Schema.Default(name)
		t.FillColumn(name, frame.Str(value))
	}
	return t, nil
}

// RequireColumnsStep fails when any of Columns is absent.
type RequireColumnsStep struct {
	Columns []string
}

func (s *RequireColumnsStep) Name() string {
	return "require_columns"
}

func (s *RequireColumnsStep) Apply(t *frame.Table) (*frame.Table, error) {
	var missing []string
	for _, name := range s.Columns {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{Missing: missing}
	}
	return t, nil
}

// ProjectStep reorders to Columns, dropping extras and leaving absent
// columns missing.
type ProjectStep struct {
	Columns []string
}

func (s *ProjectStep) Name() string {
	return "project"
}

func (s *ProjectStep) Apply(t *frame.Table) (*frame.Table, error) {
	return t.Reindex(s.Columns)
}
