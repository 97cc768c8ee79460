package indexer

const (
	defaultWorkers   = 16
	defaultQueueSize = 10_000
)

type config struct {
	workers   uint
	queueSize uint
}

func defaultConfig() *config {
	return &config{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
	}
}

type Option func(*config)

// WithWorkers sets the number of goroutines applying updates.
func WithWorkers(workers uint) Option {
	return func(c *config) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

// WithQueueSize sets the number of pending updates each worker buffers before
// new ones are dropped.
func WithQueueSize(size uint) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}
