// Package metrics provides constants used across metric definitions.
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Datastore operation label values.
const (
	OpDbQuery  = "db_query"
	OpDbInsert = "db_insert"
	OpDbUpdate = "db_update"
	OpDbDelete = "db_delete"
)

// Histogram bucket parameters.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart1s is the starting bucket for connection lifetimes.
	BucketStart1s = 1.0
	// BucketStart64B is the starting bucket for payload sizes.
	BucketStart64B = 64.0

	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)
