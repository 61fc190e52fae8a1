package kafka

import (
	"context"
	"testing"
	"time"
)

func waitClosed(t *testing.T, p *Producer) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.WaitClosed()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not shut down")
	}
}

// Close racing context cancellation must neither panic (double close of the
// inbox) nor leave WaitClosed hanging, whichever branch the loop takes.
func TestProducerShutdown(t *testing.T) {
	t.Run("close then cancel", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			ctx, cancel := context.WithCancel(context.Background())
			p := NewProducer([]string{"127.0.0.1:1"}, "orders-test", 8)
			p.Start(ctx)
			p.Close()
			cancel()
			waitClosed(t, p)
		}
	})

	t.Run("cancel then close", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewProducer([]string{"127.0.0.1:1"}, "orders-test", 8)
		p.Start(ctx)
		cancel()
		p.Close()
		waitClosed(t, p)
	})
}
