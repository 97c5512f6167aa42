package server

// Route is what a request path maps to
type Route int

const (
	RouteStatic Route = iota
	RouteList
	RouteAdd
	RouteJSON
)

var routes = map[string]Route{
	"/app-index":          RouteList,
	"/www-data/app-index": RouteList,
	"/app-add":            RouteAdd,
	"/www-data/app-add":   RouteAdd,
	"/app-json":           RouteJSON,
	"/www-data/app-json":  RouteJSON,
}

// Classify maps a path (without query string) to a route.
// Paths not in the route table are static files.
func Classify(path string) Route {
	if r, ok := routes[path]; ok {
		return r
	}
	return RouteStatic
}

// Method returns the only method a route accepts
func (r Route) Method() string {
	if r == RouteAdd {
		return "POST"
	}
	return "GET"
}

// Template returns the name of the file under web root the route renders
func (r Route) Template() string {
	switch r {
	case RouteList:
		return "app_list.html"
	case RouteAdd:
		return "app_add.html"
	}
	return ""
}

func (r Route) String() string {
	switch r {
	case RouteStatic:
		return "static"
	case RouteList:
		return "list"
	case RouteAdd:
		return "add"
	case RouteJSON:
		return "json"
	}
	return "unknown"
}
