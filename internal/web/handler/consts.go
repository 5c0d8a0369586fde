package handler

const (
	// APIPath is the root of the JSON api.
	APIPath = "/api/v1"

	// RouterRootPath is the root path inside a route group.
	RouterRootPath = "/"

	// ParamID is the route parameter holding a numeric id.
	ParamID = "id"

	// ErrNilDepsFatalLogMsg is used if app or a dependency is nil.
	ErrNilDepsFatalLogMsg = "app or handler dependencies are nil"
)
