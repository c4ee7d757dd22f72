package app

// noticeKind selects how a notice or toast is styled.
type noticeKind int

const (
	noticeSuccess noticeKind = iota
	noticeError
)

// notice is a timed inline message. gen identifies which timer may dismiss
// it; a newer notice bumps gen so older timers become no-ops.
type notice struct {
	kind noticeKind
	text string
	gen  uint64
}

func (n notice) visible() bool { return n.text != "" }

// toast is one entry of the non-blocking notification queue.
type toast struct {
	id   uint64
	kind noticeKind
	text string
}

// maxToasts bounds the queue; the oldest toast is dropped first.
const maxToasts = 3

type toastQueue struct {
	items  []toast
	nextID uint64
}

// push appends a toast and returns its id.
func (q *toastQueue) push(kind noticeKind, text string) uint64 {
	q.nextID++
	q.items = append(q.items, toast{id: q.nextID, kind: kind, text: text})
	if len(q.items) > maxToasts {
		q.items = append([]toast(nil), q.items[len(q.items)-maxToasts:]...)
	}
	return q.nextID
}

// expire removes the toast with id, if it is still queued.
func (q *toastQueue) expire(id uint64) {
	for i, t := range q.items {
		if t.id == id {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return
		}
	}
}

func (q toastQueue) len() int { return len(q.items) }
