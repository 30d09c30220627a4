package auth

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/hashicorp/go-multierror"
)

// ChainUpdaters returns an updater that hands each token to every updater
// in order. All updaters run even when one fails; the failures are
// returned together.
func ChainUpdaters(updaters ...farmos.TokenUpdater) farmos.TokenUpdater {
	active := make([]farmos.TokenUpdater, 0, len(updaters))

	for _, updater := range updaters {
		if updater != nil {
			active = append(active, updater)
		}
	}

	return farmos.TokenUpdaterFunc(func(ctx context.Context, token *farmos.Token) error {
		var result *multierror.Error

		for i, updater := range active {
			err := updater.UpdateToken(ctx, token.Clone())
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("token updater %d: %w", i, err))
			}
		}

		return result.ErrorOrNil()
	})
}
