package simulator

import "errors"

var (
	ErrAlertNotFound     = errors.New("service alert not found")
	ErrActiveAlertExists = errors.New("an active service alert already exists for this route and type")
	ErrInvalidAlert      = errors.New("invalid service alert")
	ErrRouteNotFound     = errors.New("route not found")
	ErrStopNotFound      = errors.New("stop not found")
	ErrEngineStopped     = errors.New("simulator engine is not running")
)
