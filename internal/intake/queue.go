package intake

import (
	"sync"

	"github.com/dhvanip/nagarseva/internal/bot"
)

// citizenQueues serializes message processing per citizen. Each citizen has
// a FIFO backlog drained by at most one goroutine at a time, so a burst of
// messages from one phone is applied in arrival order while other citizens
// proceed in parallel.
type citizenQueues struct {
	mu     sync.Mutex
	queues map[string]*backlog
	wg     sync.WaitGroup
}

type backlog struct {
	msgs []bot.InboundMessage
	busy bool
}

func newCitizenQueues() *citizenQueues {
	return &citizenQueues{queues: make(map[string]*backlog)}
}

// enqueue appends the message to the citizen's backlog and starts a drainer
// if none is running.
func (q *citizenQueues) enqueue(citizenID string, msg bot.InboundMessage, handle func(bot.InboundMessage)) {
	q.mu.Lock()
	b, ok := q.queues[citizenID]
	if !ok {
		b = &backlog{}
		q.queues[citizenID] = b
	}
	b.msgs = append(b.msgs, msg)
	start := !b.busy
	if start {
		b.busy = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if start {
		go q.drain(citizenID, b, handle)
	}
}

// drain processes the backlog until it is empty, then parks.
func (q *citizenQueues) drain(citizenID string, b *backlog, handle func(bot.InboundMessage)) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(b.msgs) == 0 {
			b.busy = false
			delete(q.queues, citizenID)
			q.mu.Unlock()
			return
		}
		msg := b.msgs[0]
		b.msgs = b.msgs[1:]
		q.mu.Unlock()

		handle(msg)
	}
}

// wait blocks until every backlog has drained.
func (q *citizenQueues) wait() {
	q.wg.Wait()
}
