package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ReadDownloadList loads the URL list. Files ending in .yaml or .yml are a
// sequence of {link, op} entries; anything else holds one URL per line.
func ReadDownloadList(filePath string) ([]DownloadEntry, error) {
	log := GetLogger("config")
	var entries []DownloadEntry
	var err error
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		entries, err = readYAMLList(filePath)
	default:
		entries, err = readPlainList(filePath)
	}
	if err != nil {
		return nil, err
	}
	log.Debug().Int("count", len(entries)).Str("file", filePath).Msg("Entries loaded from URL list")
	return entries, nil
}

func readYAMLList(filePath string) ([]DownloadEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []DownloadEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	for i, entry := range entries {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing link for entry %d", i+1)
		}
		if strings.ContainsRune(entry.OutputPath, '/') {
			return nil, fmt.Errorf("output name for entry %d must not contain '/'", i+1)
		}
		if ChunkFileRegex.MatchString(entry.OutputPath) {
			return nil, fmt.Errorf("output name %q for entry %d would clash with chunk files", entry.OutputPath, i+1)
		}
	}
	return entries, nil
}

func readPlainList(filePath string) ([]DownloadEntry, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening URL list: %w", err)
	}
	defer f.Close()
	var entries []DownloadEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, DownloadEntry{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading URL list: %w", err)
	}
	return entries, nil
}

// ChunkFileName is the on-disk name of the chunk starting at offset.
func ChunkFileName(dir string, offset int64) string {
	name := strings.ReplaceAll(strconv.FormatInt(offset, 10), "/", "|")
	return filepath.Join(dir, name)
}

// OutputFileName derives the merged file name from the source URL.
func OutputFileName(entry DownloadEntry) string {
	if entry.OutputPath != "" {
		return entry.OutputPath
	}
	return strings.ReplaceAll(entry.URL, "/", "+")
}

// Clean removes leftover chunk files from dir and reports how many went.
func Clean(dir string) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	var errs []error
	for _, file := range files {
		if file.IsDir() || !ChunkFileRegex.MatchString(file.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
