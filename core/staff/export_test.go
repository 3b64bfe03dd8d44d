package staff

import (
	"time"
)

// SetRandIntFunc replaces the employee number generator; call the returned func to restore it.
func SetRandIntFunc(f func() int) (restore func()) {
	orig := randIntFunc
	randIntFunc = f
	return func() { randIntFunc = orig }
}

// SetNowFunc freezes the service clock; call the returned func to restore it.
func SetNowFunc(now time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = orig }
}
