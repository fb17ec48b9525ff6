package engine

import (
	"fmt"
	"runtime/debug"
)

// runGuarded invokes fn with panic capture. A recovered panic comes back
// as its printed value and stack trace; nothing escapes to the caller's stack.
// Replaces bare handler invocation everywhere the engine crosses into
// user code
func runGuarded(fn func()) (panicValue string, stack []byte, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicValue = fmt.Sprint(r)
			stack = debug.Stack()
			panicked = true
		}
	}()
	fn()
	return
}
