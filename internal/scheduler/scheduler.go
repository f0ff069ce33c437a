package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	rangehttp "github.com/tanq16/rangeget/internal/downloaders/http"
	"github.com/tanq16/rangeget/internal/output"
	"github.com/tanq16/rangeget/internal/pool"
	"github.com/tanq16/rangeget/internal/utils"
)

// Planner decides how a resource is split before any chunk is fetched.
type Planner interface {
	Plan(url string, workers int) (utils.Plan, error)
}

// Scheduler downloads resources one at a time through a shared worker
// pool. Resources are never pipelined: a plan is only used by the call
// that produced it.
type Scheduler struct {
	cfg     utils.DownloadConfig
	planner Planner
	fetcher pool.Fetcher
	out     *output.Manager
	log     zerolog.Logger
}

func New(cfg utils.DownloadConfig, planner Planner, fetcher pool.Fetcher, out *output.Manager) *Scheduler {
	if out == nil {
		out = output.NewManager()
	}
	return &Scheduler{
		cfg:     cfg,
		planner: planner,
		fetcher: fetcher,
		out:     out,
		log:     utils.GetLogger("scheduler"),
	}
}

// Run downloads entries over plain HTTP with the configured worker count.
func Run(entries []utils.DownloadEntry, cfg utils.DownloadConfig, out *output.Manager) error {
	client := rangehttp.NewClient(cfg.HTTPClientConfig)
	return New(cfg, client, client, out).Run(entries)
}

// Run processes entries in order and stops at the first resource that
// fails. The pool is drained and shut down before Run returns.
func (s *Scheduler) Run(entries []utils.DownloadEntry) error {
	workers, err := pool.New(s.cfg.Workers, s.fetcher)
	if err != nil {
		return err
	}
	defer workers.Shutdown()
	s.log.Info().Int("resources", len(entries)).Int("workers", s.cfg.Workers).Str("dir", s.cfg.Dir).Msg("Initiating download")

	start := time.Now()
	for _, entry := range entries {
		if err := s.download(workers, entry); err != nil {
			return fmt.Errorf("error downloading %s: %w", entry.URL, err)
		}
	}
	stats := workers.Stats()
	s.log.Info().Int64("chunks", stats.Completed()).Int64("failed", stats.Failed()).
		Str("received", output.FormatBytes(uint64(stats.Bytes()))).
		Float64("meanChunkMs", stats.MeanLatencyMs()).
		Dur("elapsed", time.Since(start)).Msg("All downloads finished")
	return nil
}

func (s *Scheduler) download(workers *pool.Pool, entry utils.DownloadEntry) error {
	logger := s.log.With().Str("jobID", uuid.NewString()).Str("url", entry.URL).Logger()
	id := s.out.Register(entry.URL)
	s.out.SetMessage(id, fmt.Sprintf("Planning %s", entry.URL))

	plan, err := s.planner.Plan(entry.URL, workers.Workers())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to plan resource")
		s.out.ReportError(id, err)
		return fmt.Errorf("error determining resource size: %w", err)
	}
	dest := utils.OutputFileName(entry)
	if plan.TotalSize == 0 {
		return s.writeEmpty(id, dest, logger)
	}
	logger.Debug().Int64("size", plan.TotalSize).Int64("chunkSize", plan.ChunkSize).Int("chunks", plan.ChunkCount).Msg("Resource planned")
	s.out.SetMessage(id, fmt.Sprintf("Downloading %s (%s)", entry.URL, output.FormatBytes(uint64(plan.TotalSize))))

	// leftovers from an aborted run share these names
	if err := rangehttp.RemoveChunkFiles(s.cfg.Dir, plan.ChunkSize, plan.ChunkCount); err != nil {
		s.out.ReportError(id, err)
		return fmt.Errorf("error clearing stale chunks: %w", err)
	}

	go func() {
		for i := range plan.ChunkCount {
			start, end := plan.Range(i)
			workers.Submit(utils.NewTask(entry.URL, start, end))
		}
	}()

	var writeErr error
	var received int64
	failed := 0
	for done := 1; done <= plan.ChunkCount; done++ {
		task := workers.Collect()
		if !task.Succeeded() {
			failed++
			logger.Error().Err(task.Err).Int64("start", task.RangeStart).Int64("end", task.RangeEnd).Msg("Error downloading chunk")
			s.out.ReportChunkError(id, task.RangeStart, task.RangeEnd, task.Err)
		} else if writeErr == nil {
			n, err := rangehttp.WriteChunk(s.cfg.Dir, task)
			if err != nil {
				writeErr = err
				logger.Error().Err(err).Int64("start", task.RangeStart).Msg("Error writing chunk")
			}
			received += int64(n)
		}
		task.Result = nil
		s.out.SetChunkProgress(id, done, plan.ChunkCount, received)
	}
	if writeErr != nil {
		s.out.ReportError(id, writeErr)
		return writeErr
	}
	if failed > 0 {
		err := fmt.Errorf("%w: %d of %d chunks failed", utils.ErrChunkMissing, failed, plan.ChunkCount)
		logger.Error().Err(err).Msg("Merge skipped")
		s.out.ReportError(id, err)
		return err
	}

	s.out.SetMessage(id, fmt.Sprintf("Merging %d chunks into %s", plan.ChunkCount, dest))
	written, err := rangehttp.MergeChunks(s.cfg.Dir, dest, plan.ChunkSize, plan.ChunkCount)
	if err != nil {
		logger.Error().Err(err).Msg("Merge failed")
		s.out.ReportError(id, err)
		return fmt.Errorf("error merging chunks: %w", err)
	}
	if err := rangehttp.RemoveChunkFiles(s.cfg.Dir, plan.ChunkSize, plan.ChunkCount); err != nil {
		logger.Warn().Err(err).Msg("Some chunk files could not be removed")
	}
	logger.Info().Str("output", dest).Int64("bytes", written).Msg("Download completed")
	s.out.Complete(id, fmt.Sprintf("Downloaded %s (%s)", dest, output.FormatBytes(uint64(written))))
	return nil
}

func (s *Scheduler) writeEmpty(id int, dest string, logger zerolog.Logger) error {
	f, err := os.Create(filepath.Join(s.cfg.Dir, dest))
	if err != nil {
		s.out.ReportError(id, err)
		return fmt.Errorf("error creating merged file: %w", err)
	}
	f.Close()
	logger.Info().Str("output", dest).Msg("Resource is empty, nothing to fetch")
	s.out.Complete(id, fmt.Sprintf("Downloaded %s (empty)", dest))
	return nil
}
