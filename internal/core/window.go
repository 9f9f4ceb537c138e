package core

import (
	"iter"
	"time"

	"github.com/edvin/metering/internal/model"
)

// WindowSize is the length of a collection window.
const WindowSize = time.Hour

// Windows yields the contiguous one-hour windows [w, w+1h) from start, up to
// and not past end. A trailing partial hour is not yielded. limit > 0 caps the
// number of windows. The sequence can be ranged over more than once.
func Windows(start, end time.Time, limit int) iter.Seq[model.Window] {
	return func(yield func(model.Window) bool) {
		n := 0
		for w := start; !w.Add(WindowSize).After(end); w = w.Add(WindowSize) {
			if limit > 0 && n >= limit {
				return
			}
			if !yield(model.Window{Start: w, End: w.Add(WindowSize)}) {
				return
			}
			n++
		}
	}
}

// WindowList collects Windows into a slice.
func WindowList(start, end time.Time, limit int) []model.Window {
	var out []model.Window
	for w := range Windows(start, end, limit) {
		out = append(out, w)
	}
	return out
}
