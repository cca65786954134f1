package server

// Route path constants
const (
	RouteIndex    = "/"
	RouteLogin    = "/login"
	RouteLogout   = "/logout"
	RouteStatus   = "/status"
	RouteCallback = "/callback" // default, see WithCallbackPathFrom

	// ParamLocale overrides the configured locale for one RouteLogin request
	ParamLocale = "locale"
)
