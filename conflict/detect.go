package conflict

import (
	"reflect"
	"sort"
)

// jsonType buckets a decoded JSON value into its primitive type family.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		// typed values that did not come through JSON decode
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return "array"
		case reflect.Map, reflect.Struct:
			return "object"
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return "number"
		case reflect.Bool:
			return "bool"
		case reflect.String:
			return "string"
		}
		return "object"
	}
}

// deepEqual is recursive structural equality for arrays and objects, exact
// equality for primitives.
func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Detect compares the local and remote field maps of one record and returns
// every field-level divergence. Fields absent on one side are reported as
// missing on that side; identical fields are skipped. The output is sorted
// by field name so a detect pass is deterministic.
func (e *Engine) Detect(local, remote map[string]any, ctx Context) []Conflict {
	var conflicts []Conflict

	fields := make([]string, 0, len(local))
	for f := range local {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		lv := local[field]
		rv, inRemote := remote[field]

		switch {
		case !inRemote || rv == nil && lv != nil:
			if lv == nil {
				continue
			}
			conflicts = append(conflicts, newConflict(TypeMissingRemote, field, lv, nil, ctx))
		case lv == nil && rv != nil:
			conflicts = append(conflicts, newConflict(TypeMissingLocal, field, nil, rv, ctx))
		case deepEqual(lv, rv):
			continue
		case jsonType(lv) != jsonType(rv):
			conflicts = append(conflicts, newConflict(TypeTypeMismatch, field, lv, rv, ctx))
		default:
			conflicts = append(conflicts, newConflict(TypeValueMismatch, field, lv, rv, ctx))
		}
	}

	remoteFields := make([]string, 0, len(remote))
	for f := range remote {
		if _, inLocal := local[f]; !inLocal {
			remoteFields = append(remoteFields, f)
		}
	}
	sort.Strings(remoteFields)

	for _, field := range remoteFields {
		rv := remote[field]
		if rv == nil {
			continue
		}
		conflicts = append(conflicts, newConflict(TypeMissingLocal, field, nil, rv, ctx))
	}

	for i := range conflicts {
		e.suggest(&conflicts[i])
	}

	return conflicts
}
