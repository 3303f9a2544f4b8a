package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/cdcflow/pkg/cdcflow/change"
	"github.com/randalmurphal/cdcflow/pkg/cdcflow/queue"
)

func mustQueue(b *testing.B, capacity int, s queue.Strategy) *queue.Queue {
	b.Helper()
	q, err := queue.New(queue.Config{Capacity: capacity, Backpressure: s})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = q.Shutdown() })
	return q
}

// BenchmarkOfferPoll measures an offer followed by a poll on one key.
func BenchmarkOfferPoll(b *testing.B) {
	q := mustQueue(b, 1024, queue.Block)
	ctx := context.Background()
	evt := change.New(change.Insert, "messages", 1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Offer(ctx, evt)
		_, _, _ = q.Poll(evt.Key())
	}
}

// BenchmarkOffer_Sliding measures offers into a permanently full sliding buffer.
func BenchmarkOffer_Sliding(b *testing.B) {
	benchmarkFullOffer(b, queue.Sliding)
}

// BenchmarkOffer_DropOldest measures offers into a permanently full dropOldest buffer.
func BenchmarkOffer_DropOldest(b *testing.B) {
	benchmarkFullOffer(b, queue.DropOldest)
}

// BenchmarkOffer_DropNewest measures offers into a permanently full dropNewest buffer.
func BenchmarkOffer_DropNewest(b *testing.B) {
	benchmarkFullOffer(b, queue.DropNewest)
}

func benchmarkFullOffer(b *testing.B, s queue.Strategy) {
	q := mustQueue(b, 256, s)
	ctx := context.Background()
	evt := change.New(change.Update, "orders", 1)
	for i := 0; i < 256; i++ {
		_ = q.Offer(ctx, evt)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Offer(ctx, evt)
	}
}

// BenchmarkOffer_ManyKeys spreads offers over 64 keys, exercising lazy
// buffer creation and the key registry.
func BenchmarkOffer_ManyKeys(b *testing.B) {
	q := mustQueue(b, 1<<20, queue.Sliding)
	ctx := context.Background()
	events := make([]change.Event, 64)
	for i := range events {
		events[i] = change.New(change.Insert, tableName(i), i)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = q.Offer(ctx, events[i%len(events)])
			i++
		}
	})
}

// BenchmarkOfferTake measures a producer and a consumer on one key.
func BenchmarkOfferTake(b *testing.B) {
	q := mustQueue(b, 128, queue.Block)
	ctx := context.Background()
	evt := change.New(change.Insert, "messages", 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < b.N; i++ {
			if _, err := q.Take(ctx, evt.Key()); err != nil {
				return
			}
		}
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := q.Offer(ctx, evt); err != nil {
			b.Fatal(err)
		}
	}
	<-done
}
