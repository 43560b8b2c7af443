package saccount

import "github.com/pkg/errors"

var (
	// ErrEmptyBatch is returned when a flow is started with no calls.
	ErrEmptyBatch = errors.New("batch contains no calls")

	// ErrInvalidAccountState is returned when the requested flow does not
	// match the account's deployment state, for example executing against
	// a counterfactual account without deployment enabled.
	ErrInvalidAccountState = errors.New("invalid account state")
)
