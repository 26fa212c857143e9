package middleware

import "net/http"

// Interceptor is a middleware interface.
type Interceptor interface {
	Intercept(next http.Handler) http.Handler
}

// Set wraps h with every interceptor in m. The last one passed is the
// outermost and sees the request first.
func Set(h http.Handler, m ...Interceptor) http.Handler {
	for _, i := range m {
		h = i.Intercept(h)
	}
	return h
}
