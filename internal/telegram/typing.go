package telegram

import (
	"context"
	"time"
)

// TypingInterval is how often the indicator is refreshed; Telegram clears it
// after about five seconds.
const TypingInterval = 4 * time.Second

// KeepTyping shows the typing indicator in chatID until the returned stop
// function is called or ctx is done.
func (d *Dispatcher) KeepTyping(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(TypingInterval)
		defer ticker.Stop()

		d.SendTyping(ctx, chatID)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.SendTyping(ctx, chatID)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
