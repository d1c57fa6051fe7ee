package httpapi

import (
	"encoding/json"
	"net/http"
)

func newHealthzHandler(checkers []Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		errs := make([]string, 0)
		for _, c := range checkers {
			if err := c.Ping(r.Context()); err != nil {
				errs = append(errs, err.Error())
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(errs) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"healthy": false, "errors": errs})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"healthy": true})
	}
}
