// Package voxrest provides the admin HTTP surface: common middleware, the
// session routes, and a webserver that runs locally or as a Lambda behind
// API Gateway.
package voxrest

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"

	voxcli "github.com/voxdemo/vox-go-utils/vox-cli"
)

const APIKeyHeader = "X-Api-Key"

func Middlewares(service voxcli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withEmbedPolicyHeaders,
		withCORS(),
		withLogger(voxcli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

// Keyed registers the routes added by fn behind WithAPIKey. Routes added to
// router directly stay public.
func Keyed(router chi.Router, apiKey string, fn func(r chi.Router)) {
	router.Group(func(r chi.Router) {
		r.Use(WithAPIKey(apiKey))
		fn(r)
	})
}

func Webserver(service voxcli.Service, routes chi.Router) error {
	logger := voxcli.Logger(service)

	if voxcli.CommonOpts.Console {
		logger.Info().Int("port", voxcli.CommonOpts.Port).Msg("starting http server")
		addr := fmt.Sprintf(":%v", voxcli.CommonOpts.Port)
		if service.Subpath != "" {
			root := chi.NewRouter()
			root.Mount("/"+service.Subpath, routes)
			return http.ListenAndServe(addr, root)
		}
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, voxcli.CommonOpts.Env, service.Subpath))
	return nil
}

// WithAPIKey rejects requests whose X-Api-Key header does not match key. An
// empty key disables the check.
func WithAPIKey(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodOptions {
				next.ServeHTTP(w, req)
				return
			}
			got := req.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				zerolog.Ctx(req.Context()).Warn().Str("path", req.URL.Path).Msg("rejected request with bad api key")
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func isGraphiQL(req *http.Request) bool {
	return req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, "/graphql")
}

func withEmbedPolicyHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if isGraphiQL(req) {
			handler.ServeHTTP(w, req)
			return
		}

		header := w.Header()
		header.Add("cross-origin-embedder-policy", "require-corp")
		header.Add("cross-origin-opener-policy", "same-origin")
		header.Add("cross-origin-resource-policy", "cross-origin")
		handler.ServeHTTP(w, req)
	})
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", APIKeyHeader},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
