package parview

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("parview: no store configured")
	ErrStoreClosed = errors.New("parview: store closed")

	// Node errors.
	ErrNoHost = errors.New("parview: no host configured")

	// Not found errors.
	ErrWorkerNotFound  = errors.New("parview: worker not found")
	ErrActorNotFound   = errors.New("parview: actor not found")
	ErrDatasetNotFound = errors.New("parview: dataset not found")
	ErrBlockNotFound   = errors.New("parview: block not found")

	// State errors.
	ErrActorNotReady = errors.New("parview: actor not ready")
	ErrActorReady    = errors.New("parview: actor already set up")
	ErrActorClosed   = errors.New("parview: actor closed")
	ErrSessionClosed = errors.New("parview: session closed")

	// Cluster errors.
	ErrClusterEmpty   = errors.New("parview: cluster has no workers")
	ErrBadDescriptor  = errors.New("parview: malformed cluster descriptor")
	ErrRankMismatch   = errors.New("parview: block count does not match worker count")
	ErrLeadershipLost = errors.New("parview: leadership lost")

	// Data errors.
	ErrInvalidDims = errors.New("parview: invalid dataset dimensions")
	ErrShortFile   = errors.New("parview: dataset file shorter than dimensions imply")
	ErrBadExtent   = errors.New("parview: extent outside dataset bounds")
)
