package core

// Timer represents a scheduled one-shot event on the system clock
type Timer struct {
	WakeTime uint64 // system time in microseconds
	Handler  func(*Timer) uint8
	Next     *Timer

	armed bool
}

// Handler results. SF_DONE leaves the timer disarmed; SF_RESCHEDULE re-inserts
// it at whatever WakeTime the handler left behind.
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// TimerQueue is a list of pending timers sorted by WakeTime
type TimerQueue struct {
	head *Timer

	// Counters for instrumentation
	armed    uint32
	fired    uint32
	canceled uint32
}

// lateThresholdUS is how far past its wake time a timer may run before the
// dispatch is recorded as late
const lateThresholdUS = 1000

var defaultQueue = &TimerQueue{}

// DefaultTimerQueue returns the queue driven by ProcessTimers
func DefaultTimerQueue() *TimerQueue {
	return defaultQueue
}

// NewTimerQueue creates an empty queue
func NewTimerQueue() *TimerQueue {
	return &TimerQueue{}
}

// ScheduleTimer adds a timer to the default queue
func ScheduleTimer(t *Timer) {
	defaultQueue.ScheduleTimer(t)
}

// CancelTimer removes a timer from the default queue
func CancelTimer(t *Timer) bool {
	return defaultQueue.CancelTimer(t)
}

// TimerDispatch runs due timers on the default queue
func TimerDispatch() {
	defaultQueue.Dispatch(GetTime())
}

// ScheduleTimer arms t. A timer that is already pending is moved to its new
// WakeTime rather than linked twice.
func (q *TimerQueue) ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.armed {
		q.remove(t)
	}
	q.insert(t)
	q.armed++
}

// CancelTimer disarms t, returning false if it was not pending
func (q *TimerQueue) CancelTimer(t *Timer) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !t.armed {
		return false
	}
	q.remove(t)
	q.canceled++
	return true
}

// insert links t in sorted order by WakeTime. Timers with equal wake times
// fire in the order they were armed.
func (q *TimerQueue) insert(t *Timer) {
	t.armed = true
	if q.head == nil || t.WakeTime < q.head.WakeTime {
		t.Next = q.head
		q.head = t
		return
	}

	current := q.head
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func (q *TimerQueue) remove(t *Timer) {
	if q.head == t {
		q.head = t.Next
	} else {
		for current := q.head; current != nil; current = current.Next {
			if current.Next == t {
				current.Next = t.Next
				break
			}
		}
	}
	t.Next = nil
	t.armed = false
}

// Dispatch runs every timer with WakeTime <= now. A handler may arm timers,
// including its own; ones that are already due run in the same pass.
func (q *TimerQueue) Dispatch(now uint64) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for q.head != nil && q.head.WakeTime <= now {
		timer := q.head
		q.head = timer.Next
		timer.Next = nil
		timer.armed = false
		q.fired++

		if timer.WakeTime+lateThresholdUS < now {
			RecordTiming(EvtTimerPast, now, timer.WakeTime, 0)
		}

		result := timer.Handler(timer)

		if result == SF_RESCHEDULE && !timer.armed {
			q.insert(timer)
			q.armed++
		}
	}
}

// Pending returns the number of armed timers
func (q *TimerQueue) Pending() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for t := q.head; t != nil; t = t.Next {
		n++
	}
	return n
}

// NextWake returns the earliest pending wake time
func (q *TimerQueue) NextWake() (uint64, bool) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if q.head == nil {
		return 0, false
	}
	return q.head.WakeTime, true
}

// TimerStats summarizes queue activity since creation
type TimerStats struct {
	Armed    uint32
	Fired    uint32
	Canceled uint32
}

// Stats returns the queue counters
func (q *TimerQueue) Stats() TimerStats {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	return TimerStats{Armed: q.armed, Fired: q.fired, Canceled: q.canceled}
}

// Armed reports whether t is waiting on a queue
func (t *Timer) Armed() bool {
	return t.armed
}
