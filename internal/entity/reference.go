package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const ReferencePrefix = "ORDER-"

// ReferenceGenerator issues ORDER-<unixmillis>-<suffix> references. The millisecond
// component never repeats or goes backwards within a process.
type ReferenceGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewReferenceGenerator(now func() time.Time) *ReferenceGenerator {
	if now == nil {
		now = time.Now
	}
	return &ReferenceGenerator{now: now}
}

func (g *ReferenceGenerator) Next() string {
	g.mu.Lock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	g.mu.Unlock()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s%d-%s", ReferencePrefix, ms, suffix)
}
