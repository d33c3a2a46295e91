package reactivecell

import "context"

// SubscribeUntil subscribes sub to c exactly like [Cell.Subscribe], but also
// arranges for sub to be automatically unsubscribed the moment ctx is
// canceled. Unsubscribing cancels any pending notification for the
// subscriber, so a canceled context guarantees no further callbacks.
//
// If ctx is already canceled, sub is subscribed and then immediately
// unsubscribed.
func SubscribeUntil(ctx context.Context, c *Cell, sub *Subscriber, opts ...SubscribeOption) (count int, err error) {
	count, _, err = c.Subscribe(sub, opts...)
	if err != nil {
		return count, err
	}

	if ctx.Err() != nil {
		_ = c.Unsubscribe(sub)
		return count, nil
	}

	go func() {
		<-ctx.Done()
		_ = c.Unsubscribe(sub)
	}()

	return count, nil
}
