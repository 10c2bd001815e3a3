package telemetry

import (
	"strings"
	"sync"
)

type ReportLevel int

const (
	LevelBroken ReportLevel = iota
	LevelWarning
	LevelDebug
	LevelCount
)

type Report struct {
	Level  ReportLevel
	ID     string
	Params []any
	Count  int64
}

// RecorderAPI keeps every report in memory so tests can assert on them.
type RecorderAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func (r *RecorderAPI) record(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.record(Report{Level: LevelBroken, ID: id, Params: params})
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.record(Report{Level: LevelWarning, ID: id, Params: params})
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.record(Report{Level: LevelDebug, ID: msg, Params: params})
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.record(Report{Level: LevelCount, ID: id, Count: count})
}

// Reports returns a copy of every report of the given level.
func (r *RecorderAPI) Reports(level ReportLevel) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Level == level {
			out = append(out, report)
		}
	}
	return out
}

// Has reports whether a report of the given level has an id ending in suffix.
// Scoped ids look like "namespace: id", so matching on the suffix is usually enough.
func (r *RecorderAPI) Has(level ReportLevel, suffix string) bool {
	for _, report := range r.Reports(level) {
		if strings.HasSuffix(report.ID, suffix) {
			return true
		}
	}
	return false
}
