package voxgql

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/voxdemo/vox-go-utils/graphiql"
)

// ParseSchema binds the resolver's schema, recording it on the service.
func ParseSchema(resolver Resolver) (*graphql.Schema, error) {
	schemaText := resolver.Schema()

	config := resolver.Config()
	config.Service.Schema = schemaText

	opts := []graphql.SchemaOpt{
		graphql.MaxDepth(15),
		graphql.UseFieldResolvers(),
	}
	if !AllowIntrospection() {
		opts = append(opts, graphql.DisableIntrospection())
	}

	schema, err := graphql.ParseSchema(schemaText, resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse schema: %w", err)
	}
	return schema, nil
}

// Construct an http relay that handles graphql requests
func GraphQLRelay(resolver Resolver) (*relay.Handler, error) {
	schema, err := ParseSchema(resolver)
	if err != nil {
		return nil, err
	}
	return &relay.Handler{Schema: schema}, nil
}

// Mount attaches the graphql endpoint to router.
func Mount(router chi.Router, resolver Resolver) error {
	handler, err := GraphQLRelay(resolver)
	if err != nil {
		return err
	}

	router.Post("/graphql", middleware.NoCache(handler).ServeHTTP)
	// Allow arbitrary path parameters, for better UX in the browser
	router.Post("/graphql/*", middleware.NoCache(handler).ServeHTTP)
	return nil
}

// MountConsole serves the GraphiQL page on GET /graphql when introspection is
// allowed. The page holds no data, so it can sit outside any auth the
// endpoint itself needs.
func MountConsole(router chi.Router, resolver Resolver) {
	if !AllowIntrospection() {
		return
	}
	path := "/graphql"
	if subpath := resolver.Config().Service.Subpath; subpath != "" {
		path = fmt.Sprintf("/%v/graphql", subpath)
	}
	router.Get("/graphql", graphiql.New(path))
}
