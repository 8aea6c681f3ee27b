package sqlite

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ternarybob/vidsmith/internal/interfaces"
)

// buildQuery translates an interfaces.Query into a WHERE/ORDER/LIMIT clause
// tail plus its bound arguments. Field names are validated against the
// caller-supplied column allow list; anything else is rejected so filter
// input can never reach the SQL text.
func buildQuery(q interfaces.Query, columns map[string]bool) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	for _, f := range q.Filters {
		col := f.Field
		if !columns[col] {
			return "", nil, fmt.Errorf("unknown filter field: %s", f.Field)
		}

		switch f.Op {
		case interfaces.OpEq:
			clauses = append(clauses, col+" = ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpNeq:
			clauses = append(clauses, col+" != ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpGt:
			clauses = append(clauses, col+" > ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpGte:
			clauses = append(clauses, col+" >= ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpLt:
			clauses = append(clauses, col+" < ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpLte:
			clauses = append(clauses, col+" <= ?")
			args = append(args, normalizeValue(f.Value))
		case interfaces.OpIn:
			vals, err := expandSlice(f.Value)
			if err != nil {
				return "", nil, fmt.Errorf("filter %s: %w", f.Field, err)
			}
			if len(vals) == 0 {
				// Empty IN matches nothing
				clauses = append(clauses, "1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
			clauses = append(clauses, col+" IN ("+placeholders+")")
			args = append(args, vals...)
		case interfaces.OpLike:
			clauses = append(clauses, col+" LIKE ?")
			args = append(args, f.Value)
		case interfaces.OpILike:
			clauses = append(clauses, col+" LIKE ? COLLATE NOCASE")
			args = append(args, f.Value)
		default:
			return "", nil, fmt.Errorf("unknown filter operator: %s", f.Op)
		}
	}

	if !q.IncludeDeleted && columns["deleted_at"] {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	var sb strings.Builder
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if len(q.Order) > 0 {
		var orders []string
		for _, o := range q.Order {
			if !columns[o.Field] {
				return "", nil, fmt.Errorf("unknown order field: %s", o.Field)
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			orders = append(orders, o.Field+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}

	if q.Page != nil {
		size := q.Page.Size
		if size <= 0 {
			size = 50
		}
		page := q.Page.Number
		if page <= 0 {
			page = 1
		}
		sb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, size, (page-1)*size)
	}

	return sb.String(), args, nil
}

// normalizeValue maps Go values to their column representation. Times become
// Unix seconds; everything else passes through to the driver.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Unix()
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Unix()
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

func expandSlice(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("in operator requires a slice value, got %T", v)
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, normalizeValue(rv.Index(i).Interface()))
	}
	return out, nil
}
