/*
Package resilience provides a circuit breaker for upstream fetches.

A Breaker is closed until ReadyToTrip says the failure run is long enough,
then open for Timeout, then half-open until MaxRequests consecutive
successes close it again or one failure reopens it.

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                        ^                    |
	                        +-----[failure]------+

IsSuccessful decides which errors count against the breaker. A caller that
expects some errors as ordinary answers (a 404 during a fallback chain)
returns true for them so they never trip it.

	breaker := resilience.New("content", resilience.Settings{
		Timeout: 5 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
	err := breaker.Execute(func() error { return fetch() })
*/
package resilience
