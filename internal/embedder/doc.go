// Package embedder talks to the external embedding worker process.
//
// The worker is a long-lived child process speaking newline-delimited JSON
// on stdin/stdout. It signals readiness by printing a marker line on
// stderr once its model has loaded. Client owns exactly one such process:
//
//	c := embedder.NewClient(embedder.Config{
//	    Locate:         embedder.CommandLocator("", nil),
//	    ReadyMarker:    "EMBEDDER_READY",
//	    StartupTimeout: 120 * time.Second,
//	    RequestTimeout: 30 * time.Second,
//	}, logger)
//	defer c.Shutdown()
//
//	vectors, err := c.Embed(ctx, []string{"first text", "second text"})
//
// The process is started lazily on the first request. A timeout, EOF or
// broken pipe kills it and resets the client; the next call respawns it.
// All failures are reported as *ProcessError.
//
// # Wire Protocol
//
//	-> {"texts": ["...", ...]}      <- {"embeddings": [[...], ...], "dimensions": N}
//	-> {"ping": true}               <- {"pong": true}
//	                                <- {"error": "..."}
//
// Each request gets exactly one response line, in order.
package embedder
