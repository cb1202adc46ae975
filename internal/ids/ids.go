package ids

import "github.com/segmentio/ksuid"

// New returns a sortable opaque identifier for stored entities.
func New() string {
	return ksuid.New().String()
}
