// Package retry runs actions until they succeed or a strategy gives up.
package retry

// Action is a unit of work that may be attempted more than once.
type Action func() error

// Retry runs action until it succeeds or one of the strategies declines
// another attempt, and returns the number of attempts made along with the
// last error.
//
// Strategies are consulted in order, so ones that sleep belong at the end.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++
		err := action()
		if err == nil {
			return attempts, nil
		}
		if !shouldRetry(strategies, attempts, err) {
			return attempts, err
		}
	}
}

// Loop runs action forever, stopping only when a strategy declines to retry a
// failure. A success resets the attempt count seen by the strategies.
func Loop(action Action, strategies ...Strategy) error {
	var failures uint
	for {
		err := action()
		if err == nil {
			failures = 0
			continue
		}

		failures++
		if !shouldRetry(strategies, failures, err) {
			return err
		}
	}
}

func shouldRetry(strategies []Strategy, attempts uint, err error) bool {
	for _, strategy := range strategies {
		if !strategy(attempts, err) {
			return false
		}
	}
	return true
}
