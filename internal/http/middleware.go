package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/idempotency"
	"github.com/robertarktes/eventhub/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := observability.WithLogger(r.Context(), entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware counts requests by route pattern so ids do not explode label cardinality.
func MetricsMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
			observability.LoggerFrom(r.Context(), logger).WithFields(map[string]interface{}{
				"method":      r.Method,
				"route":       route,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("request completed")
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
			attribute.String("http.request_id", middleware.GetReqID(r.Context())),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// TokenVerifier is implemented by *auth.Tokens.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// AuthMiddleware resolves a bearer token into an auth.Identity. Requests
// without an Authorization header pass through anonymously; a bad token is 401.
func AuthMiddleware(tokens TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := auth.BearerToken(header)
			if !ok {
				writeStatus(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}
			id, err := tokens.Verify(raw)
			if err != nil {
				writeStatus(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := auth.WithIdentity(r.Context(), id)
			ctx = observability.WithLogger(ctx, observability.LoggerFrom(ctx, observability.NopLogger()).WithField("user_id", id.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeStatus(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				writeStatus(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeStatus(w, http.StatusForbidden, "insufficient role")
		})
	}
}

// Limiter is implemented by *rateLimit.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error)
}

type RateLimits struct {
	PerIP   int
	PerUser int
	Window  time.Duration
}

type limitKey struct {
	scope string
	key   string
	rate  int
}

// RateLimitMiddleware applies a per-IP budget to every request and a per-user
// budget to authenticated ones. Redis errors fail open.
func RateLimitMiddleware(rl Limiter, limits RateLimits, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			keys := []limitKey{{scope: "ip", key: "ip:" + ip, rate: limits.PerIP}}
			if id, ok := auth.FromContext(r.Context()); ok {
				keys = append(keys, limitKey{scope: "user", key: "user:" + id.ID.String(), rate: limits.PerUser})
			}

			for _, k := range keys {
				if k.rate <= 0 {
					continue
				}
				ok, err := rl.Allow(r.Context(), k.key, k.rate, limits.Window)
				if err != nil {
					observability.LoggerFrom(r.Context(), logger).WithError(err).Warn("rate limiter unavailable")
					continue
				}
				if !ok {
					observability.RateLimitExceeded.WithLabelValues(k.scope).Inc()
					w.Header().Set("Retry-After", strconv.Itoa(int(limits.Window.Seconds())))
					writeStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Keys are optional and scoped to caller and path. Only
// responses below 500 are stored.
// canonicalBody is the part of a request body that identifies a retry.
// Multipart bodies are reduced to their parts, since clients pick a fresh
// boundary on every attempt. Anything unparsable is compared byte for byte.
func canonicalBody(contentType string, body []byte) []byte {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return body
	}
	var out bytes.Buffer
	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return out.Bytes()
		}
		if err != nil {
			return body
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return body
		}
		fmt.Fprintf(&out, "%s\x00%s\x00%d\x00", part.FormName(), part.FileName(), len(data))
		out.Write(data)
	}
}

func IdempotencyMiddleware(idemp *idempotency.Idempotency, maxBody int64, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !idempotency.ValidKey(key) {
				writeStatus(w, http.StatusBadRequest, "invalid Idempotency-Key")
				return
			}
			log := observability.LoggerFrom(r.Context(), logger)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
			if err != nil {
				writeStatus(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := "anon"
			if id, ok := auth.FromContext(r.Context()); ok {
				scope = id.ID.String()
			}
			req := idempotency.Request{Scope: scope + ":" + r.URL.Path, Key: key, Body: canonicalBody(r.Header.Get("Content-Type"), body)}

			cached, err := idemp.Begin(r.Context(), req)
			if errors.Is(err, domain.ErrConflict) {
				writeError(w, r, logger, err)
				return
			}
			if err != nil {
				log.WithError(err).Warn("idempotency store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				if cached.ContentType != "" {
					w.Header().Set("Content-Type", cached.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Result)
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			// Detached so a client disconnect does not leave the key locked.
			ctx := context.WithoutCancel(r.Context())
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := idemp.Release(ctx, req); err != nil {
					log.WithError(err).Warn("failed to release idempotency key")
				}
				return
			}
			err = idemp.Complete(ctx, req, idempotency.Response{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Result:      buf.Bytes(),
			})
			if err != nil {
				log.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}
