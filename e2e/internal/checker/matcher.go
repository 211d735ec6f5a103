package checker

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// MatchesExpectation checks actual against expected. Expected strings may
// be matchers: ~regex~ or a numeric comparison (>n, <n, >=n, <=n). Maps
// match when every expected key matches; extra actual keys are ignored.
// Returns (true, "") on match, (false, "reason") on mismatch.
func MatchesExpectation(actual, expected interface{}) (bool, string) {
	if expected == nil || actual == nil {
		if expected == nil && actual == nil {
			return true, ""
		}
		return false, fmt.Sprintf("expected %v, got %v", expected, actual)
	}

	if s, ok := expected.(string); ok {
		switch {
		case len(s) >= 2 && strings.HasPrefix(s, "~") && strings.HasSuffix(s, "~"):
			return matchRegex(actual, strings.Trim(s, "~"))
		case strings.HasPrefix(s, ">") || strings.HasPrefix(s, "<"):
			return matchComparison(actual, s)
		}
	}

	if _, isString := expected.(string); !isString {
		if ef, err := toFloat64(expected); err == nil {
			af, err := toFloat64(actual)
			if err != nil {
				return false, fmt.Sprintf("expected number %v, got %T", expected, actual)
			}
			if af != ef {
				return false, fmt.Sprintf("expected %v, got %v", expected, actual)
			}
			return true, ""
		}
	}

	switch exp := expected.(type) {
	case string:
		act, ok := actual.(string)
		if !ok {
			return false, fmt.Sprintf("expected string, got %T", actual)
		}
		if act != exp {
			return false, fmt.Sprintf("expected %q, got %q", exp, act)
		}
		return true, ""

	case bool:
		act, ok := actual.(bool)
		if !ok {
			return false, fmt.Sprintf("expected bool, got %T", actual)
		}
		if act != exp {
			return false, fmt.Sprintf("expected %v, got %v", exp, act)
		}
		return true, ""

	case map[string]interface{}:
		return matchMap(actual, exp)
	}

	if kind := reflect.TypeOf(expected).Kind(); kind == reflect.Slice || kind == reflect.Array {
		return matchArray(actual, expected)
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

// matchRegex checks if actual, formatted as a string, matches pattern
func matchRegex(actual interface{}, pattern string) (bool, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err)
	}

	actualStr := fmt.Sprintf("%v", actual)
	if re.MatchString(actualStr) {
		return true, ""
	}
	return false, fmt.Sprintf("value %q does not match pattern ~%s~", actualStr, pattern)
}

// matchComparison checks if actual satisfies a comparison (>, <, >=, <=)
func matchComparison(actual interface{}, comparison string) (bool, string) {
	actualFloat, err := toFloat64(actual)
	if err != nil {
		return false, fmt.Sprintf("cannot compare non-numeric value: %v", actual)
	}

	op := comparison[:1]
	if strings.HasPrefix(comparison[1:], "=") {
		op = comparison[:2]
	}

	limit, err := strconv.ParseFloat(strings.TrimSpace(comparison[len(op):]), 64)
	if err != nil {
		return false, fmt.Sprintf("invalid comparison value: %s", comparison)
	}

	var ok bool
	switch op {
	case ">":
		ok = actualFloat > limit
	case "<":
		ok = actualFloat < limit
	case ">=":
		ok = actualFloat >= limit
	case "<=":
		ok = actualFloat <= limit
	}

	if ok {
		return true, ""
	}
	return false, fmt.Sprintf("expected value %s %v, got %v", op, limit, actualFloat)
}

// matchMap performs recursive matching on maps
func matchMap(actual interface{}, expected map[string]interface{}) (bool, string) {
	actualMap, ok := actual.(map[string]interface{})
	if !ok {
		return false, fmt.Sprintf("expected map, got %T", actual)
	}

	for key, expectedValue := range expected {
		actualValue, exists := actualMap[key]
		if !exists {
			return false, fmt.Sprintf("missing key %q", key)
		}

		if ok, reason := MatchesExpectation(actualValue, expectedValue); !ok {
			return false, fmt.Sprintf("key %q: %s", key, reason)
		}
	}

	return true, ""
}

// matchArray performs element-wise matching on arrays
func matchArray(actual, expected interface{}) (bool, string) {
	actualVal := reflect.ValueOf(actual)
	if kind := actualVal.Kind(); kind != reflect.Slice && kind != reflect.Array {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	expectedVal := reflect.ValueOf(expected)

	if actualVal.Len() != expectedVal.Len() {
		return false, fmt.Sprintf("expected array length %d, got %d", expectedVal.Len(), actualVal.Len())
	}

	for i := 0; i < expectedVal.Len(); i++ {
		ok, reason := MatchesExpectation(actualVal.Index(i).Interface(), expectedVal.Index(i).Interface())
		if !ok {
			return false, fmt.Sprintf("element %d: %s", i, reason)
		}
	}

	return true, ""
}

// toFloat64 converts numeric values, and numeric strings as stored in
// Redis, to float64
func toFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a numeric type: %T", val)
	}
}
