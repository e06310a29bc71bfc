package index

import "log/slog"

// Progress reports indexing progress at batch boundaries.
type Progress struct {
	Phase      string  // "walking", "indexing", "clearing"
	Current    int     // files processed so far
	Total      int     // total files in this run
	Percentage float64 // 0-100, non-decreasing within a run
}

// ProgressFunc receives progress updates. Callbacks are best-effort:
// panics are swallowed so a misbehaving callback cannot abort a run.
type ProgressFunc func(Progress)

// progressReporter invokes the callback with monotonically non-decreasing
// percentages.
type progressReporter struct {
	cb   ProgressFunc
	last float64
}

func newProgressReporter(cb ProgressFunc) *progressReporter {
	return &progressReporter{cb: cb}
}

func (r *progressReporter) report(phase string, current, total int) {
	if r.cb == nil {
		return
	}

	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	if pct < r.last {
		pct = r.last
	}
	r.last = pct

	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("progress callback panicked", slog.Any("panic", rec))
		}
	}()
	r.cb(Progress{Phase: phase, Current: current, Total: total, Percentage: pct})
}
