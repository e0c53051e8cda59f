package realtime

// RouteOptions configures the websocket upgrade route.
type RouteOptions struct {
	// route path for the upgrade endpoint
	Path string

	// whether ?token=<t> is accepted when no Authorization header is usable
	AllowQueryToken bool

	// when true, a malformed Authorization header is rejected instead of
	// falling through to the query token
	StrictHeaderPrecedence bool
}

func DefaultRouteOptions() RouteOptions {
	return RouteOptions{
		Path:                   "/realtime/socket",
		AllowQueryToken:        true,
		StrictHeaderPrecedence: true,
	}
}
