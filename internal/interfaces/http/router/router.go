// Package router mounts the versioned API route groups on a gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes below an API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects route groups and mounts them under /api/<version>
type Router struct {
	engine     *gin.Engine
	version    string
	middleware []gin.HandlerFunc
	groups     []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the version segment of the API prefix
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

// NewRouter creates a Router for engine serving API version v1 by default
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Prefix returns the API path prefix, e.g. "/api/v1"
func (r *Router) Prefix() string {
	return "/api/" + r.version
}

// Use adds middleware that runs for API routes only
func (r *Router) Use(middleware ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, middleware...)
	return r
}

// Register queues groups for Setup
func (r *Router) Register(groups ...RouteRegistrar) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup mounts every registered group on the engine
func (r *Router) Setup() {
	api := r.engine.Group(r.Prefix(), r.middleware...)
	for _, g := range r.groups {
		g.RegisterRoutes(api)
	}
}

// Group is a set of routes sharing a path prefix
type Group struct {
	prefix string
	routes []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewGroup creates an empty route group mounted at prefix
func NewGroup(prefix string) *Group {
	return &Group{prefix: prefix}
}

// GET adds a GET route
func (g *Group) GET(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodGet, path, handlers...)
}

// POST adds a POST route
func (g *Group) POST(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPost, path, handlers...)
}

// PATCH adds a PATCH route
func (g *Group) PATCH(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodPatch, path, handlers...)
}

// DELETE adds a DELETE route
func (g *Group) DELETE(path string, handlers ...gin.HandlerFunc) *Group {
	return g.Handle(http.MethodDelete, path, handlers...)
}

// Handle adds a route for method
func (g *Group) Handle(method, path string, handlers ...gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

// RegisterRoutes implements RouteRegistrar
func (g *Group) RegisterRoutes(rg *gin.RouterGroup) {
	sub := rg.Group(g.prefix)
	for _, rt := range g.routes {
		sub.Handle(rt.method, rt.path, rt.handlers...)
	}
}
