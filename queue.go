package carburetor

// Queue is an unbounded FIFO of speeds feeding one control loop. Send never
// waits on the consumer; a pump goroutine buffers everything not yet received.
type Queue struct {
	in  chan Speed
	out chan Speed
}

func NewQueue() *Queue {
	q := &Queue{
		in:  make(chan Speed),
		out: make(chan Speed),
	}
	go q.pump()
	return q
}

// Send enqueues s. It must not be called after Close.
func (q *Queue) Send(s Speed) {
	q.in <- s
}

// Receive returns the consumer side. It is closed once the queue is closed
// and every pending speed has been delivered.
func (q *Queue) Receive() <-chan Speed {
	return q.out
}

func (q *Queue) Close() {
	close(q.in)
}

func (q *Queue) pump() {
	var pending []Speed
	in := q.in
	for in != nil || len(pending) > 0 {
		var out chan Speed
		var next Speed
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}
		select {
		case s, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, s)
		case out <- next:
			pending = pending[1:]
		}
	}
	close(q.out)
}
