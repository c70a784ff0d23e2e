package safe

import (
	"TeleProject/logger"
)

// Go starts a goroutine that recovers from panics so a single bad
// session cannot take the whole gateway down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}
