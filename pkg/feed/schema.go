package feed

import "fmt"

// PostAddedChannel returns the Pub/Sub channel carrying postAdded events.
// Pattern: postboard:{namespace}:post_added_events
func PostAddedChannel(namespace string) string {
	return fmt.Sprintf("postboard:%s:post_added_events", namespace)
}
