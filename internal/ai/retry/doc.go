// Package retry drives AI completion calls with capped exponential backoff.
//
// The package has three parts:
//
//   - ShouldRetry and Delay are the policy: pure functions over a classified
//     *aierr.Error and an attempt counter.
//   - Execute is the loop. It classifies every failure, applies the call-site
//     allowlist from Config.RetryableTypes, consults the policy and sleeps
//     between attempts while watching the context.
//   - State is what a UI observer polls: attempts, whether a retry is in
//     flight, the last error and a progress percentage.
//
// Basic usage:
//
//	st := retry.NewState()
//	res := retry.Execute(ctx, retry.DefaultConfig(), func(ctx context.Context) (string, error) {
//	    return completer.Complete(ctx, prompt)
//	}, st.OnRetry)
//	if !res.Success {
//	    log.Warn("summary failed", "type", res.Err.Type, "attempts", res.Attempts)
//	}
//
// Config.Now and Config.After can be replaced in tests to avoid real sleeps.
package retry
