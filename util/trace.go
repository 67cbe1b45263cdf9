package util

import (
	"log/slog"
	"time"
)

// Trace 记录一段操作的耗时，用法：defer util.Trace("composite")()
func Trace(name string) func() {
	start := time.Now()
	return func() {
		slog.Info("trace", "name", name, "elapsed", time.Since(start))
	}
}
