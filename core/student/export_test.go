package student

import (
	"time"
)

// SetNowFunc freezes the service clock; call the returned func to restore it.
func SetNowFunc(now time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = func() time.Time { return now }
	return func() { nowFunc = orig }
}
