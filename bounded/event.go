package bounded

import "fmt"
import "sync"

import "github.com/bnclabs/golog"

// Op is the kind of operation recorded in an Event.
type Op int

const (
	// OpAllocate block granted.
	OpAllocate Op = iota + 1
	// OpDeallocate block released.
	OpDeallocate
)

func (op Op) String() string {
	switch op {
	case OpAllocate:
		return "Allocated"
	case OpDeallocate:
		return "Deallocated"
	}
	panic(fmt.Errorf("unexpected op %d", int(op)))
}

// Event observed by Accounting for every granted allocation and every
// deallocation. Total is the running total right after the operation.
type Event struct {
	Op    Op
	Size  int64
	Total int64
}

func (ev Event) String() string {
	return fmt.Sprintf("%v %v bytes. Total allocated: %v", ev.Op, ev.Size, ev.Total)
}

// Recorder consume allocation events. Record may be called concurrently
// from several goroutines.
type Recorder interface {
	Record(ev Event)
}

// Logrecorder write every event as a line to the logger.
type Logrecorder struct{}

// Record implement Recorder{} interface.
func (Logrecorder) Record(ev Event) {
	log.Infof("%v\n", ev)
}

// Eventlog keeps all recorded events in memory, in the order they were
// recorded.
type Eventlog struct {
	mu     sync.Mutex
	events []Event
}

// NewEventlog return an empty event log.
func NewEventlog() *Eventlog {
	return &Eventlog{events: make([]Event, 0, 16)}
}

// Record implement Recorder{} interface.
func (evlog *Eventlog) Record(ev Event) {
	evlog.mu.Lock()
	evlog.events = append(evlog.events, ev)
	evlog.mu.Unlock()
}

// Events return a copy of events recorded so far.
func (evlog *Eventlog) Events() []Event {
	evlog.mu.Lock()
	defer evlog.mu.Unlock()
	return append([]Event(nil), evlog.events...)
}

// Lines return recorded events formatted as text lines.
func (evlog *Eventlog) Lines() []string {
	events := evlog.Events()
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, ev.String())
	}
	return lines
}

// Tee fan out events to several recorders.
type Tee []Recorder

// Record implement Recorder{} interface.
func (tee Tee) Record(ev Event) {
	for _, recorder := range tee {
		recorder.Record(ev)
	}
}
