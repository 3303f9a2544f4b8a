/*
Package cdcflow buffers row-level change events per stream and dispatches
them to registered handlers.

# Overview

A change feed reports every insert, update and delete it observes. cdcflow
routes each event by its key, "table.operation", into a bounded in-memory
buffer, and runs one consumer per key that fans every event out to the
handlers registered for that key. Handlers run concurrently, inside a
middleware stack, with exponential-backoff retry. A handler that still
fails after its last attempt is logged and discarded; it never stops the
consumer or affects its siblings.

# Basic Usage

	engine, err := cdcflow.New(cdcflow.DefaultConfig)
	if err != nil {
	    log.Fatal(err)
	}

	engine.OnChange("messages", change.Insert, func(ctx context.Context, evt change.Event) error {
	    return index(ctx, evt.Value)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	// From the feed subscriber:
	err = engine.Ingest(ctx, change.New(change.Insert, "messages", row))

Register every handler before Start. Start reads the registry once; a key
first registered afterwards gets no consumer.

# Backpressure

Each key's buffer holds queue.Config.Capacity events. When it is full:

  - block: Ingest waits for space (the default)
  - sliding: the oldest buffered event is evicted
  - dropOldest: the most recently buffered event is replaced
  - dropNewest: the incoming event is discarded

# Middleware

Middleware wrap every handler attempt, first element outermost. The
default stack is logging, metrics, error tracking:

	cfg := cdcflow.DefaultConfig
	cfg.Dispatcher.Middleware = []middleware.Middleware{
	    middleware.Tracing(observability.NewSpanManager()),
	    middleware.Logging(logger),
	    middleware.Metrics(recorder),
	    middleware.ErrorTracking(logger),
	}

# Configuration Files

ConfigFrom maps a YAML or JSON document loaded with the config package:

	doc, err := config.FromFile("cdcflow.yaml")
	cfg, err := cdcflow.ConfigFrom(doc, middleware.Deps{Logger: logger, Metrics: recorder})

# Shutdown

Cancelling the context passed to Start stops the consumers; in-flight
handlers are not awaited. Shutdown releases the buffers. Events still
buffered are lost; delivery is in-memory and at-most-once.
*/
package cdcflow
