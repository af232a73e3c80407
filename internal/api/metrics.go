package api

import (
	"sort"
	"sync"
	"time"

	"github.com/rescale/poloniex-int/internal/constants"
	"github.com/rescale/poloniex-int/internal/logging"
)

// apiMetrics tracks API usage statistics
type apiMetrics struct {
	sync.Mutex
	totalCalls     int64
	callsByCommand map[string]int64
	windowStart    time.Time
	callsInWindow  int64
	targetRate     float64 // configured refill rate, requests per second
	now            func() time.Time
}

func newAPIMetrics(targetRate float64) *apiMetrics {
	return &apiMetrics{
		callsByCommand: make(map[string]int64),
		windowStart:    time.Now(),
		targetRate:     targetRate,
		now:            time.Now,
	}
}

// record counts one HTTP exchange and logs a usage summary every
// APIUsageLogInterval.
func (m *apiMetrics) record(command string, logger *logging.Logger) {
	m.Lock()
	defer m.Unlock()

	m.totalCalls++
	m.callsByCommand[command]++
	m.callsInWindow++

	elapsed := m.now().Sub(m.windowStart)
	if elapsed < constants.APIUsageLogInterval {
		return
	}

	reqPerSec := float64(m.callsInWindow) / elapsed.Seconds()
	event := logger.Info().
		Float64("req_per_sec", reqPerSec).
		Int64("total_calls", m.totalCalls)
	if m.targetRate > 0 {
		event = event.Float64("percent_of_limit", reqPerSec/m.targetRate*100)
	}
	event.Msg("API usage")

	m.callsInWindow = 0
	m.windowStart = m.now()
}

// CommandCount is the number of exchanges sent for one command.
type CommandCount struct {
	Command string
	Calls   int64
}

// Usage is a snapshot of a client's traffic.
type Usage struct {
	TotalCalls int64
	ByCommand  []CommandCount // most called first
}

func (m *apiMetrics) snapshot() Usage {
	m.Lock()
	defer m.Unlock()

	u := Usage{TotalCalls: m.totalCalls}
	for cmd, n := range m.callsByCommand {
		u.ByCommand = append(u.ByCommand, CommandCount{Command: cmd, Calls: n})
	}
	sort.Slice(u.ByCommand, func(i, j int) bool {
		if u.ByCommand[i].Calls != u.ByCommand[j].Calls {
			return u.ByCommand[i].Calls > u.ByCommand[j].Calls
		}
		return u.ByCommand[i].Command < u.ByCommand[j].Command
	})
	return u
}
