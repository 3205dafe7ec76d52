package schedule

import "sync"

// DefaultResultLogSize is the capacity used when none is configured.
const DefaultResultLogSize = 200

// ResultLog is a bounded ring buffer of run results shared by all jobs.
// When full, the oldest result is evicted.
type ResultLog struct {
	mu    sync.RWMutex
	buf   []Result
	start int
	size  int
}

// NewResultLog creates a log holding at most capacity results.
func NewResultLog(capacity int) *ResultLog {
	if capacity <= 0 {
		capacity = DefaultResultLogSize
	}
	return &ResultLog{buf: make([]Result, capacity)}
}

// Append adds r, evicting the oldest result when the log is full.
func (l *ResultLog) Append(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = r
		l.size++
		return
	}
	l.buf[l.start] = r
	l.start = (l.start + 1) % len(l.buf)
}

// Recent returns up to limit results for jobID, most recent first.
// An empty jobID matches every job; limit <= 0 means no limit.
func (l *ResultLog) Recent(jobID string, limit int) []Result {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Result, 0)
	for i := l.size - 1; i >= 0; i-- {
		r := l.buf[(l.start+i)%len(l.buf)]
		if jobID != "" && r.JobID != jobID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of results held.
func (l *ResultLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Cap returns the log's capacity.
func (l *ResultLog) Cap() int {
	return len(l.buf)
}
