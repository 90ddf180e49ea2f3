// AngelaMos | 2026
// request.go

package core

import (
	"net/http"
	"strconv"
)

// QueryInt reads an integer query parameter, falling back to def when it is
// missing or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return def
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}

	return parsed
}
