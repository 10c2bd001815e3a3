package chrono

import (
	"sync"
	"time"
)

// API is where every component gets "now" from. Cookie expiry, cache-busting timestamps and
// school year math all go through it so tests can pin the clock.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl returns the wall clock in the named IANA zone. An empty name means UTC.
func NewStandardImpl(zone string) (StandardImpl, error) {
	if zone == "" {
		return StandardImpl{location: time.UTC}, nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.Location())
}

func (s StandardImpl) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// FixedImpl is a clock that only moves when told to.
type FixedImpl struct {
	mutex sync.Mutex
	now   time.Time
}

func NewFixedImpl(now time.Time) *FixedImpl {
	return &FixedImpl{now: now}
}

func (f *FixedImpl) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *FixedImpl) Location() *time.Location {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now.Location()
}

func (f *FixedImpl) Set(now time.Time) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = now
}

func (f *FixedImpl) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
}
