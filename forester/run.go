package forester

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/lightprotocol/forester-go/config"
	"github.com/lightprotocol/forester-go/txerrors"
	"github.com/rs/zerolog/log"
)

// Registry is anything that can hand back the pipelines due for a tick; the
// real implementation sources trees from the RPC pool and indexer, which are
// out of scope here, so callers construct a Registry directly from their own
// tree/queue state.
type Registry interface {
	Pipelines(ctx context.Context) ([]*Pipeline, error)
}

// StaticRegistry is a fixed set of pipelines, useful both for tests and for
// a forester instance that forests a known, static list of trees.
type StaticRegistry []*Pipeline

func (s StaticRegistry) Pipelines(ctx context.Context) ([]*Pipeline, error) {
	return s, nil
}

// RunForever ticks every cfg.PollingInterval, running one
// PrepareProofsWithSequentialChangelogs cycle per pipeline reg returns,
// until ctx is canceled. A single pipeline's error is logged and does not
// stop the others; RunForever itself only returns non-nil if reg.Pipelines
// fails. Discovering which trees to forest from a live RPC/indexer is out
// of scope here; callers supply reg already populated (e.g. a
// StaticRegistry), each pipeline already wired to prover.
func RunForever(ctx context.Context, cfg *config.Config, reg Registry) error {
	ticker := time.NewTicker(cfg.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pipelines, err := reg.Pipelines(ctx)
			if err != nil {
				return err
			}
			for _, p := range pipelines {
				if _, err := PrepareProofsWithSequentialChangelogs(ctx, p); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					log.Error().
						Err(err).
						Str("tree_pubkey", hex.EncodeToString(p.TreePubkey[:])).
						Uint32("error_code", txerrors.Code(err)).
						Msg("proof cycle failed, retrying next tick")
				}
			}
		}
	}
}
