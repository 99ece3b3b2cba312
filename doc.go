// Package rox is the core of a remote feature-flag and experimentation
// SDK: it maintains a registry of typed flags whose values are derived at
// runtime from a remote configuration of experiments and target groups,
// fetched from a CDN/API/Roxy side-car with a defined fallback chain, and
// evaluated through a small stack-based expression language.
//
// # Basic Usage
//
//	core, err := rox.New("0123456789abcdef01234567",
//	    rox.WithFetchInterval(60*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer core.Shutdown()
//
//	flag := core.AddFlag("new-feature", false)
//	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
//	defer cancel()
//	if err := core.FetchWithContext(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if flag.IsEnabled(nil) {
//	    // ...
//	}
//
// # Configuration
//
//	core, _ := rox.New(apiKey,
//	    rox.WithLogger(logger),
//	    rox.WithMode(configuration.ModeFromEnv()),
//	    rox.WithFetchInterval(time.Minute),
//	    rox.WithImpressionHandler(func(rv rox.ReportingValue, exp *rox.Experiment, ctx rox.Context) { ... }),
//	)
//
// # Concurrency
//
// A *Core is safe for concurrent use: flag reads, fetch(), and custom
// property registration may all be called from multiple goroutines.
// Shutdown stops every owned worker (periodic task, push listener, state
// sender debouncer) and joins them before returning.
package rox
