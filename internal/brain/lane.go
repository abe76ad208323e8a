package brain

// Lane serializes warm-path position-event application onto one goroutine,
// so two PositionEvents for the same user touched by overlapping
// goroutines are applied in arrival order instead of racing (spec.md §9
// Design Note 1: "single writer lane"). Cache itself is safe for concurrent
// Upsert calls; Lane exists to preserve ordering, not mutual exclusion.
type Lane struct {
	jobs chan func()
	done chan struct{}
}

// NewLane starts the lane's worker goroutine.
func NewLane() *Lane {
	l := &Lane{jobs: make(chan func(), 256), done: make(chan struct{})}
	go l.run()
	return l
}

func (l *Lane) run() {
	for job := range l.jobs {
		job()
	}
	close(l.done)
}

// Submit enqueues job for sequential execution. It blocks only if the lane
// is backed up past its buffer, which bounds memory rather than silently
// dropping a position mutation (unlike the bus, correctness here requires
// every event to land).
func (l *Lane) Submit(job func()) {
	l.jobs <- job
}

// Close stops accepting new jobs and waits for the queue to drain.
func (l *Lane) Close() {
	close(l.jobs)
	<-l.done
}
