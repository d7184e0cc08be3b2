package turn

import (
	"errors"

	"github.com/haloagents/halo/team"
)

// Fatal turn errors. Everything else the pipeline can go wrong on is
// recovered internally and reflected in the Trace instead.
var (
	// ErrConfigMissing reports that the requested agent definition is absent
	// or disabled. There is nothing to route, so no fallback applies.
	ErrConfigMissing = errors.New("agent definition missing or disabled")

	// ErrModelUnresolved reports that no usable model could be built, even
	// after retrying the resolver's default.
	ErrModelUnresolved = team.ErrModelUnresolved

	// ErrFallbackFailed reports that both the streaming path and the
	// non-streaming fallback failed. The wrapped cause is the last failure.
	ErrFallbackFailed = errors.New("streaming and fallback generation both failed")
)
