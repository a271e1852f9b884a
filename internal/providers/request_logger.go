package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// hashIPForLog keeps a short irreversible prefix for log correlation.
func hashIPForLog(ip string) string {
	h := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(h[:])[:12]
}

func RequestLogger(logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			t := GetLogTypeByRequestType(r.Method)
			format := "%s %s status=%d duration=%s ip=%s request_id=%s"
			args := []interface{}{r.Method, r.URL.Path, sw.status, time.Since(start), hashIPForLog(clientIP(r)), middleware.GetReqID(r.Context())}
			switch {
			case sw.status >= 500:
				logger.Errorf(t, format, args...)
			case sw.status >= 400:
				logger.Warnf(t, format, args...)
			default:
				logger.Infof(t, format, args...)
			}
		})
	}
}
