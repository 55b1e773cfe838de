package middleware

import (
	"errors"
	"net/http"
	"unicode"
	"unicode/utf8"
)

// Input limits.
const (
	// MaxURLLength bounds URLs accepted for scraping and endpoint testing.
	MaxURLLength = 2048
	// MaxIdentifierLength bounds a listing id or name in a path, in runes.
	MaxIdentifierLength = 200
	// MaxQueryValues bounds the number of query values on one request.
	MaxQueryValues = 32
	// MaxQueryValueLength bounds each query value, in bytes.
	MaxQueryValueLength = MaxURLLength
)

// Validation errors.
var (
	ErrURLTooLong        = errors.New("URL exceeds maximum length")
	ErrIdentifierTooLong = errors.New("identifier exceeds maximum length")
	ErrIdentifierInvalid = errors.New("identifier contains invalid characters")
	ErrQueryTooLarge     = errors.New("query string too large")
)

// ValidateURLLength rejects overlong URLs before any parsing or fetching.
func ValidateURLLength(raw string) error {
	if len(raw) > MaxURLLength {
		return ErrURLTooLong
	}
	return nil
}

// ValidateIdentifier checks a listing id or name taken from a path. Names
// are free text, so only length, UTF-8 validity and control characters
// are checked.
func ValidateIdentifier(id string) error {
	if !utf8.ValidString(id) {
		return ErrIdentifierInvalid
	}
	if utf8.RuneCountInString(id) > MaxIdentifierLength {
		return ErrIdentifierTooLong
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrIdentifierInvalid
		}
	}
	return nil
}

// ValidateQuery returns ErrQueryTooLarge when the query has too many values
// or any value is too long.
func ValidateQuery(r *http.Request) error {
	count := 0
	for _, values := range r.URL.Query() {
		for _, v := range values {
			count++
			if count > MaxQueryValues || len(v) > MaxQueryValueLength {
				return ErrQueryTooLarge
			}
		}
	}
	return nil
}

// LimitQuery rejects requests whose query string fails ValidateQuery.
func LimitQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ValidateQuery(r); err != nil {
			writeError(w, http.StatusBadRequest, "QUERY_TOO_LARGE", "Query string too large")
			return
		}
		next.ServeHTTP(w, r)
	})
}
