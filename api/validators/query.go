package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
)

// OptionalNonNegativeInt parses query key as an integer >= 0. A missing or
// blank value yields nil.
func OptionalNonNegativeInt(r *http.Request, key string, max int) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").
			WithDetails(map[string]any{"field": key})
	}
	if value < 0 || (max > 0 && value > max) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").
			WithDetails(map[string]any{"field": key, "min": 0, "max": max})
	}
	return &value, nil
}

// QueryString returns the trimmed query value, cut to maxLen bytes.
func QueryString(r *http.Request, key string, maxLen int) string {
	return SanitizeString(r.URL.Query().Get(key), maxLen)
}
