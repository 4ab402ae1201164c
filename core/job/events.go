package job

import (
	"sync"

	"tgstream/model"
)

const subscriberBuffer = 16

// Broker fans job status updates out to subscribers of a job id.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan *model.Job]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan *model.Job]struct{})}
}

// Subscribe returns a channel of updates for jobID and a function that ends
// the subscription and closes the channel.
func (b *Broker) Subscribe(jobID string) (<-chan *model.Job, func()) {
	ch := make(chan *model.Job, subscriberBuffer)

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan *model.Job]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[jobID], ch)
			if len(b.subs[jobID]) == 0 {
				delete(b.subs, jobID)
			}
			close(ch)
		})
	}
}

// Publish sends a snapshot of job to its subscribers. Slow subscribers miss updates.
func (b *Broker) Publish(job *model.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[job.ID] {
		snapshot := *job
		select {
		case ch <- &snapshot:
		default:
		}
	}
}

// Subscribers reports how many subscriptions jobID has.
func (b *Broker) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}
