package providers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"moriportal/internal/structures"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
	Mount(r chi.Router, middlewares ...func(http.Handler) http.Handler)
}

type RouterProvider struct {
	routes []structures.Route
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(http.MethodPost, url, handler)
}

func (rp *RouterProvider) add(method, url string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{
		Method:  method,
		Url:     url,
		Handler: handler,
	})
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

// Mount registers every collected route on r. Unknown methods on a known
// path are answered with 405 by chi.
func (rp *RouterProvider) Mount(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	for _, route := range rp.routes {
		h := route.Handler
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		r.Method(route.Method, route.Url, h)
	}
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}
