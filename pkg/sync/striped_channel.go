package sync

import (
	"sync"
)

const (
	hashEntriesPerChannel = 200
)

// StripedChannel fans values out over a fixed set of buffered channels. Values
// sent with the same key always land on the same channel, so a single reader
// per channel sees them in send order.
type StripedChannel[T any] struct {
	channels []chan T
	hashRing *ring
	once     sync.Once
}

func NewStripedChannel[T any](count, queueSize uint) *StripedChannel[T] {
	channels := make([]chan T, count)
	for i := range channels {
		channels[i] = make(chan T, queueSize)
	}

	return &StripedChannel[T]{
		channels: channels,
		hashRing: newRing("chan", int(count), hashEntriesPerChannel),
	}
}

// GetChannels returns the receiving end of every stripe.
func (c *StripedChannel[T]) GetChannels() []<-chan T {
	receivers := make([]<-chan T, 0, len(c.channels))
	for _, channel := range c.channels {
		receivers = append(receivers, channel)
	}
	return receivers
}

// Send queues value on the stripe owning key without blocking. It returns
// false when that stripe is full. Sending after Close panics.
func (c *StripedChannel[T]) Send(key []byte, value T) bool {
	select {
	case c.channels[c.hashRing.shard(key)] <- value:
		return true
	default:
		return false
	}
}

// Close closes every stripe. Calling it more than once is a no-op.
func (c *StripedChannel[T]) Close() {
	c.once.Do(func() {
		for _, channel := range c.channels {
			close(channel)
		}
	})
}
