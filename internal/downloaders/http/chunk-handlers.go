package rangehttp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rangeget/internal/utils"
)

// WriteChunk stores the payload of a successful task in the chunk file
// named after its starting offset.
func WriteChunk(dir string, task *utils.Task) (int, error) {
	if !task.Succeeded() {
		return 0, fmt.Errorf("no response to write for chunk %d of %s", task.RangeStart, task.URL)
	}
	chunkPath := utils.ChunkFileName(dir, task.RangeStart)
	content := task.Result.Content()
	if err := os.WriteFile(chunkPath, content, 0644); err != nil {
		return 0, fmt.Errorf("error writing chunk file %s: %w", chunkPath, err)
	}
	return len(content), nil
}

// MergeChunks concatenates the count chunk files at offsets 0, chunkSize,
// 2*chunkSize... into dest inside dir. Every chunk file must exist before
// dest is created, so a gap never yields a partial output file.
func MergeChunks(dir, dest string, chunkSize int64, count int) (int64, error) {
	chunkPaths := make([]string, count)
	for i := range count {
		chunkPaths[i] = utils.ChunkFileName(dir, int64(i)*chunkSize)
		if _, err := os.Stat(chunkPaths[i]); err != nil {
			return 0, fmt.Errorf("%w: offset %d: %w", utils.ErrChunkMissing, int64(i)*chunkSize, err)
		}
	}
	destPath := filepath.Join(dir, dest)
	destFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("error creating merged file: %w", err)
	}
	var totalWritten int64
	for _, chunkPath := range chunkPaths {
		written, err := appendFile(destFile, chunkPath)
		totalWritten += written
		if err != nil {
			destFile.Close()
			os.Remove(destPath)
			return 0, err
		}
	}
	if err := destFile.Close(); err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("error finalizing merged file: %w", err)
	}
	log.Debug().Str("op", "http/merge").Str("output", destPath).Int64("bytes", totalWritten).Int("chunks", count).Msg("Chunks merged")
	return totalWritten, nil
}

func appendFile(dst *os.File, chunkPath string) (int64, error) {
	chunk, err := os.Open(chunkPath)
	if err != nil {
		return 0, fmt.Errorf("error opening chunk: %w", err)
	}
	defer chunk.Close()
	written, err := io.Copy(dst, chunk)
	if err != nil {
		return written, fmt.Errorf("error copying chunk %s: %w", chunkPath, err)
	}
	return written, nil
}

// RemoveChunkFiles deletes every expected chunk file. Missing files are
// skipped; other failures are collected and cleanup carries on.
func RemoveChunkFiles(dir string, chunkSize int64, count int) error {
	var errs []error
	for i := range count {
		chunkPath := utils.ChunkFileName(dir, int64(i)*chunkSize)
		if err := os.Remove(chunkPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
