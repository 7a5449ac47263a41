// Package feed carries postAdded events from the Posts service to its
// subscribers.
//
// # Overview
//
// A Bus publishes one event per created post and fans it out to every live
// Subscription. Delivery is at-most-once: there is no persistence, no replay
// and no acknowledgement. A subscriber that falls behind its buffer loses
// events rather than slowing the publisher down.
//
// Two implementations exist:
//
//   - MemoryBus fans out inside one process. It is the default for a single
//     Posts service.
//   - RedisBus fans out through Redis Pub/Sub so several Posts replicas share
//     one event stream.
//
// # Usage Example
//
//	bus := feed.NewMemoryBus()
//	defer bus.Close()
//
//	sub, err := bus.SubscribePostAdded(ctx)
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//
//	for ev := range sub.Events() {
//		fmt.Println(ev.ID, ev.Title)
//	}
//
// # Redis Schema
//
// Channels are namespaced so several deployments can share one Redis server:
//
//	postboard:{namespace}:post_added_events
//
// Payloads are the JSON encoding of model.PostAdded.
package feed
