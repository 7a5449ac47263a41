// Package watch streams live posts to a writer.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/source"
	"github.com/dyluth/postboard/internal/table"
)

// StreamPosts writes every post delivered by feed to w until ctx is done.
// Feed errors are logged and streaming continues; a write failure ends it.
func StreamPosts(ctx context.Context, feed source.LiveFeed, format table.OutputFormat, w io.Writer) error {
	if format != table.OutputFormatDefault && format != table.OutputFormatJSONL {
		return fmt.Errorf("unsupported stream format %q", format)
	}

	events := make(chan model.PostAdded, 16)
	stop := make(chan struct{})
	sub, err := feed.SubscribePostAdded(ctx,
		func(ev model.PostAdded) {
			select {
			case events <- ev:
			case <-stop:
			}
		},
		func(err error) {
			log.Printf("[Watch] postAdded subscription error: %v", err)
		})
	if err != nil {
		return fmt.Errorf("failed to subscribe to postAdded: %w", err)
	}
	defer sub.Release()
	defer close(stop)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			var err error
			if format == table.OutputFormatJSONL {
				err = table.FormatEventJSONL(w, ev)
			} else {
				err = table.FormatEvent(w, ev)
			}
			if err != nil {
				return err
			}
		}
	}
}
