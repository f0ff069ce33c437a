package output

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

type ResourceOutput struct {
	ID          int
	URL         string
	Status      string
	Message     string
	Progress    string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	URL   string
	Error error
	Time  time.Time
}

// Manager tracks one line of status per resource and, once started,
// redraws them on a ticker until stopped.
type Manager struct {
	outputs     map[int]*ResourceOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	count       int
	live        bool
	stopOnce    sync.Once
	doneCh      chan struct{}
	displayTick time.Duration
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		outputs:     make(map[int]*ResourceOutput),
		doneCh:      make(chan struct{}),
		displayTick: 200 * time.Millisecond,
	}
}

func (m *Manager) Register(url string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.count++
	m.outputs[m.count] = &ResourceOutput{
		ID:          m.count,
		URL:         url,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.count
}

func (m *Manager) update(id int, fn func(info *ResourceOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(info *ResourceOutput) {
		info.Message = message
	})
}

// SetChunkProgress shows how many of a resource's chunks have come back.
func (m *Manager) SetChunkProgress(id, done, total int, received int64) {
	m.update(id, func(info *ResourceOutput) {
		elapsed := time.Since(info.StartTime).Seconds()
		info.Progress = fmt.Sprintf("%s %s %d/%d chunks %s %s",
			ProgressBar(int64(done), int64(total), 30), StyleSymbols["bullet"], done, total,
			StyleSymbols["bullet"], FormatSpeed(received, elapsed))
	})
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(info *ResourceOutput) {
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.URL)
		}
		info.Message = message
		info.Progress = ""
		info.Complete = true
		info.Status = "success"
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.update(id, func(info *ResourceOutput) {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.URL)
		m.errors = append(m.errors, ErrorReport{URL: info.URL, Error: err, Time: time.Now()})
	})
}

// ReportChunkError records a failed range for the summary without
// settling the resource's status.
func (m *Manager) ReportChunkError(id int, start, end int64, err error) {
	m.update(id, func(info *ResourceOutput) {
		m.errors = append(m.errors, ErrorReport{
			URL:   fmt.Sprintf("%s [bytes %d-%d]", info.URL, start, end),
			Error: err,
			Time:  time.Now(),
		})
	})
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if info, exists := m.outputs[id]; exists {
		return info.Status
	}
	return "unknown"
}

func (m *Manager) Errors() []ErrorReport {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]ErrorReport(nil), m.errors...)
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	default:
		return pendingStyle.Render(StyleSymbols["pending"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sorted() []*ResourceOutput {
	all := make([]*ResourceOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// render draws the current state, keeping the newest resources when the
// terminal is too short for all of them.
func (m *Manager) render() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}
	var lines []string
	for _, info := range m.sorted() {
		elapsed := time.Since(info.StartTime)
		if info.Complete {
			elapsed = info.LastUpdated.Sub(info.StartTime)
		}
		message := info.Message
		if message == "" {
			message = "Waiting..."
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s", statusIndicator(info.Status),
			debugStyle.Render(elapsed.Round(time.Second).String()), styleMessage(info.Status, message)))
		if info.Progress != "" {
			lines = append(lines, "      "+streamStyle.Render(info.Progress))
		}
	}
	if available := terminalHeight() - 3; len(lines) > available {
		lines = lines[len(lines)-max(available, 0):]
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.live = true
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.render()
			case <-m.doneCh:
				m.render()
				return
			}
		}
	}()
}

// StopDisplay stops the live view, if any, and prints the summary.
func (m *Manager) StopDisplay() {
	m.stopOnce.Do(func() {
		close(m.doneCh)
		m.displayWg.Wait()
		m.ShowSummary()
	})
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.live {
		for _, info := range m.sorted() {
			fmt.Printf("  %s %s\n", statusIndicator(info.Status), styleMessage(info.Status, info.Message))
		}
	}
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Println()
	fmt.Println("  " + success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Println("  " + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	if len(m.errors) > 0 {
		fmt.Println()
		fmt.Println("  " + errorStyle.Bold(true).Render("Errors:"))
		for i, report := range m.errors {
			fmt.Printf("    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", report.Time.Format("15:04:05"))),
				errorStyle.Render(report.URL))
			fmt.Printf("      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", report.Error)))
		}
	}
	fmt.Println()
}
