package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

// publishResult is satisfied by *gcppubsub.PublishResult.
type publishResult interface {
	Get(context.Context) (serverID string, err error)
}

type publishFunc func(context.Context, *gcppubsub.Message) publishResult

func (f publishFunc) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return f(ctx, msg)
}

// gcpTopic adapts a Pub/Sub publisher; nil stays nil so the row is parked.
func gcpTopic(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return publishFunc(func(ctx context.Context, msg *gcppubsub.Message) publishResult {
		return p.Publish(ctx, msg)
	})
}
