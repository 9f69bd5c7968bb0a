// Package replication turns asset_ property changes into local registry
// creates and updates.
package replication

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/minigames/smartsync/internal/codec"
	"github.com/minigames/smartsync/internal/dispatcher"
	"github.com/minigames/smartsync/internal/registry"
	"github.com/minigames/smartsync/internal/session"
	"github.com/minigames/smartsync/pkg/core"
)

// Stats counts what happened to asset_ changes.
type Stats struct {
	Created atomic.Int64
	Updated atomic.Int64
	// Stale counts updates older than the descriptor already applied.
	Stale   atomic.Int64
	Dropped atomic.Int64
}

// Replicator applies asset_ changes to the session registry.
type Replicator struct {
	session *session.Context
	logger  *slog.Logger
	stats   Stats
}

// New creates a replicator for s.
func New(s *session.Context, logger *slog.Logger) *Replicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replicator{session: s, logger: logger.With("component", "replication")}
}

// Register routes every asset_ key of d to the replicator.
func (r *Replicator) Register(d *dispatcher.Dispatcher, opts ...dispatcher.Option) {
	d.RegisterPrefix(core.AssetKeyPrefix, r.HandleChange, opts...)
}

// Stats returns the replicator counters.
func (r *Replicator) Stats() *Stats {
	return &r.stats
}

// HandleChange applies one asset_ change. A key this participant does not
// know yet is created only from a well-formed descriptor naming a bundle and
// asset; anything else is dropped. A known key is updated, and a malformed
// value for it is an error. The reserved player and weapon keys are never
// created from the room, and are updated only by their own writer or by an
// unstamped write.
func (r *Replicator) HandleChange(c dispatcher.Change) error {
	if c.Value == nil {
		return nil
	}
	id, ok := core.ParseKey(c.Key)
	if !ok {
		r.drop(c.Key, "not an object key")
		return nil
	}

	reg := r.session.Registry
	return r.session.Exclusive(func() error {
		d, decodeErr := decode(id, c.Value)

		if _, known := reg.Lookup(c.Key); known {
			if decodeErr != nil {
				return fmt.Errorf("update %s: %w", c.Key, decodeErr)
			}
			if core.IsReserved(id) && d.Writer != "" && d.Writer != r.session.Self() {
				r.drop(c.Key, "reserved key written by "+d.Writer)
				return nil
			}
			applied, err := reg.Apply(c.Key, d)
			if err != nil {
				return err
			}
			if applied {
				r.stats.Updated.Add(1)
			} else {
				r.stats.Stale.Add(1)
			}
			return nil
		}

		if core.IsReserved(id) {
			r.drop(c.Key, "reserved key")
			return nil
		}
		if decodeErr != nil {
			r.drop(c.Key, decodeErr.Error())
			return nil
		}
		if !d.Creatable() {
			r.drop(c.Key, "empty bundle or asset")
			return nil
		}
		if _, err := reg.Create(c.Key, d); err != nil {
			if errors.Is(err, registry.ErrUnknownAssetKind) {
				r.stats.Dropped.Add(1)
			}
			return err
		}
		r.stats.Created.Add(1)
		r.logger.Debug("Smart object created", "key", c.Key, "template", d.Template().String(), "writer", d.Writer)
		return nil
	})
}

func (r *Replicator) drop(key, reason string) {
	r.stats.Dropped.Add(1)
	r.logger.Debug("Change dropped", "key", key, "reason", reason)
}

// decode parses value and checks it belongs to the key it arrived under.
func decode(id int32, value any) (core.Descriptor, error) {
	d, err := codec.Decode(value)
	if err != nil {
		return core.Descriptor{}, err
	}
	if d.ID != id {
		return core.Descriptor{}, fmt.Errorf("%w: id %d under %s", codec.ErrMalformedDescriptor, d.ID, core.Key(id))
	}
	return d, nil
}
