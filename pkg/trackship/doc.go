// Package trackship provides an embeddable location tracker that never loses
// a sample.
//
// Every cycle reads one position, commits it to a local SQLite store, and then
// drains the unsynced backlog to a collector, oldest first, stopping at the
// first sample the collector does not accept. A sample is marked synced only
// after the collector acknowledged it, so a crash at any point leads to a
// re-send, never to a loss.
//
// # Basic Usage
//
//	cfg := trackship.Config{
//	    DBPath:       "/var/lib/trackship/trackship.db",
//	    CollectorURL: "https://collector.example.com",
//	    APIKey:       "your-api-key",
//	}
//
//	t, err := trackship.New(ctx, cfg, trackship.WithPositionSource(source))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	if err := t.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Scheduling
//
// Start installs the periodic job [JobName] with a keep policy, so calling it
// on every process start never duplicates the schedule. Cycles that end with
// [OutcomeRetry] are retried once after a jittered exponential backoff that
// starts at Config.RetryBackoff and never exceeds the interval. Cycles that end
// with [OutcomeFailure] wait for the next periodic run.
//
// # Display
//
// [Tracker.Recent] lists the newest samples. Setting Config.ListenAddr also
// serves them over HTTP, together with a websocket stream of cycle reports.
package trackship
