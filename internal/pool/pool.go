package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog"
	"github.com/tanq16/rangeget/internal/queue"
	"github.com/tanq16/rangeget/internal/utils"
)

// Fetcher performs one byte-range fetch. Failures are returned, never
// raised, and become the outcome of the task.
type Fetcher interface {
	FetchRange(url string, start, end int64) (*utils.Buffer, error)
}

// Item is anything a worker can pull from the todo queue: a task queued
// through Submit or a Shutdown sentinel.
type Item interface {
	isItem()
}

type taskItem struct {
	task *utils.Task
}

func (taskItem) isItem() {}

// Shutdown tells the worker that receives it to exit.
type Shutdown struct{}

func (Shutdown) isItem() {}

// Pool runs a fixed number of workers between a todo and a done queue.
// Both queues hold twice as many items as there are workers.
type Pool struct {
	todo     *queue.Queue[Item]
	done     *queue.Queue[*utils.Task]
	fetcher  Fetcher
	workers  int
	wg       sync.WaitGroup
	stopOnce sync.Once
	stats    *Stats
	log      zerolog.Logger
}

func New(workers int, fetcher Fetcher) (*Pool, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidWorkers, workers)
	}
	p := &Pool{
		todo:    queue.New[Item](2 * workers),
		done:    queue.New[*utils.Task](2 * workers),
		fetcher: fetcher,
		workers: workers,
		stats:   newStats(),
		log:     utils.GetLogger("pool"),
	}
	p.wg.Add(workers)
	for i := range workers {
		go p.work(i + 1)
	}
	p.log.Debug().Int("workers", workers).Msg("Worker pool started")
	return p, nil
}

func (p *Pool) work(workerID int) {
	defer p.wg.Done()
	logger := p.log.With().Int("workerID", workerID).Logger()
	for {
		switch item := p.todo.Get().(type) {
		case Shutdown:
			logger.Debug().Msg("Worker received shutdown")
			return
		case taskItem:
			p.process(item.task, logger)
			p.done.Put(item.task)
		}
	}
}

func (p *Pool) process(task *utils.Task, logger zerolog.Logger) {
	start := time.Now()
	buf, err := p.fetcher.FetchRange(task.URL, task.RangeStart, task.RangeEnd)
	p.stats.latency.Update(time.Since(start).Milliseconds())
	if err == nil && buf == nil {
		err = fmt.Errorf("fetcher returned no response for %s", task.URL)
	}
	if err != nil {
		task.Result, task.Err = nil, err
		p.stats.failed.Inc(1)
		logger.Debug().Err(err).Int64("start", task.RangeStart).Int64("end", task.RangeEnd).Msg("Chunk fetch failed")
		return
	}
	task.Result, task.Err = buf, nil
	p.stats.completed.Inc(1)
	p.stats.bytes.Inc(int64(buf.Length))
	logger.Debug().Int64("start", task.RangeStart).Int("bytes", buf.Length).Msg("Chunk fetched")
}

// Submit queues a task, blocking while todo is full.
func (p *Pool) Submit(task *utils.Task) {
	p.todo.Put(taskItem{task: task})
}

// enqueue puts any item, sentinels included, on the todo queue.
func (p *Pool) enqueue(item Item) {
	p.todo.Put(item)
}

// Collect returns the next processed task in completion order, blocking
// until one is available. Callers must collect exactly as many tasks as
// they submitted.
func (p *Pool) Collect() *utils.Task {
	return p.done.Get()
}

// Shutdown sends one sentinel per worker and waits for all of them to
// exit. Only call it after every submitted task has been collected.
// Later calls are no-ops.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		for range p.workers {
			p.todo.Put(Shutdown{})
		}
		p.wg.Wait()
		p.log.Debug().Msg("Worker pool stopped")
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) Stats() *Stats {
	return p.stats
}

// Stats accumulates fetch outcomes across the lifetime of a pool.
type Stats struct {
	bytes     metrics.Counter
	completed metrics.Counter
	failed    metrics.Counter
	latency   metrics.Histogram
}

func newStats() *Stats {
	return &Stats{
		bytes:     metrics.NewCounter(),
		completed: metrics.NewCounter(),
		failed:    metrics.NewCounter(),
		latency:   metrics.NewHistogram(metrics.NewUniformSample(1028)),
	}
}

// Bytes is the raw response volume received, headers included.
func (s *Stats) Bytes() int64 { return s.bytes.Count() }
func (s *Stats) Completed() int64 { return s.completed.Count() }
func (s *Stats) Failed() int64 { return s.failed.Count() }
func (s *Stats) MeanLatencyMs() float64 { return s.latency.Mean() }
