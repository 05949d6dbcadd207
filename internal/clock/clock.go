// Package clock defines the time source used for budget tracking.
package clock

import "time"

// Clock abstracts time.Now so time-dependent behavior can be tested
// deterministically.
type Clock interface {
	Now() time.Time
}
