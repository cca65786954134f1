package pkce

import (
	"io"
	"time"
)

// SetRandReader replaces the random source until the returned func is called.
func SetRandReader(r io.Reader) (restore func()) {
	prev := randReader
	randReader = r
	return func() { randReader = prev }
}

// SetNowTime pins the clock used by GenerateState.
func SetNowTime(fn func() time.Time) (restore func()) {
	prev := nowTime
	nowTime = fn
	return func() { nowTime = prev }
}
