package middleware

import "net/http"

// JSONMiddleware sets the response content type for the whole API. Asset
// streaming handlers override it per response.
func JSONMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
