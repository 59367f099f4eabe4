// Package perf runs orderstorm load tests from Go code.
//
// It wraps the engine used by the orderstorm CLI with the e-commerce
// shopper profile, so a test can be driven without the command line:
//
//	cfg, _ := perf.LoadConfig("storm.yaml")
//	result, _ := perf.RunTest(context.Background(), cfg)
//
//	fmt.Printf("Requests: %d\n", result.Metrics.TotalRequests)
//	fmt.Printf("P95: %v\n", result.Metrics.Latency.P95)
//	fmt.Printf("Passed: %v\n", result.Passed)
//
// # Programmatic Configuration
//
//	cfg := &perf.Config{
//	    Host: "http://localhost:8080",
//	    Load: perf.Load{Executor: "constant-vus", Users: 20, SpawnRate: 5, Duration: "2m"},
//	}
//	runner, err := perf.NewRunner(cfg, perf.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := runner.Run(ctx)
//
// While Run is in progress, Runner.GetMetrics returns a live snapshot.
package perf
