package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
)

type number interface{ ~int | ~float64 }

// parseQuery reads key from the query string. A missing or blank value
// yields def. Values that fail to parse or fall outside [lo, hi] are
// validation errors naming the parameter.
func parseQuery[T number](r *http.Request, key string, def, lo, hi T, parse func(string) (T, error)) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		return def, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a number", key).
			WithDetails(map[string]any{"field": key})
	}
	if v < lo || v > hi {
		return def, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be between %v and %v", key, lo, hi).
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return v, nil
}

func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	return parseQuery(r, key, def, lo, hi, strconv.Atoi)
}

func ParseQueryFloat(r *http.Request, key string, def, lo, hi float64) (float64, error) {
	return parseQuery(r, key, def, lo, hi, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseQueryBool treats a missing value as false.
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be true or false", key).
			WithDetails(map[string]any{"field": key})
	}
	return v, nil
}
