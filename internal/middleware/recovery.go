package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"surveysync/pkg/apierror"
	"surveysync/pkg/response"
)

// Recovery turns a panicking handler into a 500 whose message carries the
// request id, so a client report can be matched to the logged stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				id := GetRequestID(r.Context())
				log.Printf("[Recovery] PANIC %s %s req=%s: %v\n%s",
					r.Method, r.URL.Path, id, err, debug.Stack())

				response.Error(w, apierror.InternalError("Internal server error (request "+id+")"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
