package types

// Route is the model family selected for a request.
type Route string

const (
	RouteText   Route = "text"
	RouteVision Route = "vision"
	RouteAudio  Route = "audio"
)

// AllRoutes lists every route in selection priority order.
var AllRoutes = []Route{RouteVision, RouteAudio, RouteText}

func (r Route) String() string { return string(r) }

func ParseRoute(s string) (Route, bool) {
	switch Route(s) {
	case RouteText, RouteVision, RouteAudio:
		return Route(s), true
	default:
		return "", false
	}
}
