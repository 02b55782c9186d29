package bridge

import (
	"fmt"
	"sort"
	"strings"

	"forest/internal/domain"
)

// Validate checks data against schema's required keys, declared primitive
// types, and enum memberships. A nil schema always passes (spec.md §4.3
// treats "no schema supplied" as structurally unconstrained).
func Validate(schema *domain.Schema, data map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	var missing []string
	for _, key := range schema.Required {
		if _, ok := data[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.ValidationError{
			Key:     strings.Join(missing, ","),
			Message: fmt.Sprintf("response missing required key(s): %s", strings.Join(missing, ", ")),
		}
	}

	for key, wantType := range schema.Types {
		v, ok := data[key]
		if !ok {
			continue
		}
		if !matchesType(v, wantType) {
			return domain.ValidationError{Key: key, Message: fmt.Sprintf("expected type %s for %s", wantType, key)}
		}
	}

	for key, allowed := range schema.Enum {
		v, ok := data[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || !contains(allowed, s) {
			return domain.ValidationError{Key: key, Message: fmt.Sprintf("%s must be one of %v", key, allowed)}
		}
	}

	return nil
}

func matchesType(v interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "bool", "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
