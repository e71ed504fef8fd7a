package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var (
	errMissingParam     = errors.New("missing param")
	errDuplicatePayment = errors.New("duplicate payment")
)

// parseNumericID accepts ids sent either as JSON numbers or strings.
func parseNumericID(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		var out int64
		if _, err := fmt.Sscan(trimmed, &out); err != nil {
			return 0, false
		}
		return out, true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func nilIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func nullIfEmptyPtr(value *string) any {
	if value == nil {
		return nil
	}
	return nilIfEmpty(*value)
}

func defaultFloat(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
