package cache

import (
	"context"
	"encoding/json"
)

// invalidation is the message exchanged between instances sharing one redis.
type invalidation struct {
	Origin   string   `json:"origin"`
	Keys     []string `json:"keys,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
}

func (a *Adapter) publish(ctx context.Context, msg invalidation) {
	if !a.opts.Broadcast || a.remote == nil {
		return
	}

	msg.Origin = a.instanceID

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if err := a.remote.Publish(ctx, a.opts.Channel, payload); err != nil {
		a.fail(ctx, "publish", a.opts.Channel, err)
	}
}

// subscribe applies invalidations published by other instances to the local tier.
// go-redis reconnects the subscription on its own after an outage.
func (a *Adapter) subscribe(ctx context.Context) {
	ps := a.remote.Subscribe(ctx, a.opts.Channel)
	defer ps.Close()

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}

			a.apply([]byte(m.Payload))
		}
	}
}

func (a *Adapter) apply(payload []byte) {
	var msg invalidation
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.log.Warn().Err(err).Msg("ignoring malformed invalidation message")

		return
	}

	if msg.Origin == a.instanceID {
		return
	}

	for _, k := range msg.Keys {
		a.local.Delete(k)
	}

	for _, p := range msg.Patterns {
		a.local.DeletePattern(p)
	}

	recordLocalEntries(a.local.Len())
}
