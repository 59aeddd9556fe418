// Package graphiql serves the GraphiQL browser console for a graphql endpoint.
package graphiql

import (
	"bytes"
	_ "embed"
	"net/http"
	"text/template"

	"github.com/rs/zerolog"
)

//go:embed graphiql.html
var page string

var pageTemplate = template.Must(template.New("graphiql").Parse(page))

// New returns a handler rendering the console against endpoint, the path
// where the graphql api is mounted.
func New(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var buffer bytes.Buffer
		if err := pageTemplate.Execute(&buffer, struct{ Endpoint string }{Endpoint: endpoint}); err != nil {
			zerolog.Ctx(req.Context()).Error().Err(err).Msg("failed to render graphiql")
			http.Error(w, "failed to render graphiql", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buffer.Bytes())
	}
}
