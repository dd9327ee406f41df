package utils

import "github.com/sony/gobreaker"

// ExecuteWithBreaker runs fn through cb, recovering the typed result from
// the breaker's untyped Execute. The inter-service clients wrap their HTTP
// calls with it so a failing peer trips the breaker instead of piling up
// requests.
func ExecuteWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return res.(T), nil
}
