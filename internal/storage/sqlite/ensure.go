package sqlite

import (
	"github.com/felixgeelhaar/rekindle/internal/metrics"
)

// Ensure the interaction store satisfies the recorder's sink interface.
var _ metrics.Sink = (*InteractionStore)(nil)
