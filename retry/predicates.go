package retry

import "errors"

// Always retries every failure
func Always() func(error) bool {
	return func(error) bool { return true }
}

// OnErrors retries failures matching any of targets via errors.Is
func OnErrors(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate
func Not(pred func(error) bool) func(error) bool {
	return func(err error) bool { return !pred(err) }
}
