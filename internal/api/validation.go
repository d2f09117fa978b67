package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// ValidationError represents a rejected query parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// parseLimit reads the optional "limit" query parameter. A missing value
// yields def; values above max are clamped.
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ValidationError{Field: "limit", Message: "must be an integer"}
	}
	if limit < 1 {
		return 0, ValidationError{Field: "limit", Message: "must be positive"}
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit, nil
}

// parseBool reads an optional boolean query parameter.
func parseBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ValidationError{Field: name, Message: "must be true or false"}
	}
	return v, nil
}
