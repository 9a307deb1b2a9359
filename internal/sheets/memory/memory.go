// Package memory is an in-process ReportPublisher for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ports "github.com/privatep88/Petty-Cash/internal/sheets"
)

type Publisher struct {
	mu        sync.Mutex
	reports   map[string]ports.Report
	published int
}

var _ ports.ReportPublisher = (*Publisher)(nil)

func New() *Publisher {
	return &Publisher{reports: map[string]ports.Report{}}
}

// PublishReport replaces any earlier report for the same period.
func (p *Publisher) PublishReport(ctx context.Context, r ports.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports[r.Title()] = r
	p.published++
	return fmt.Sprintf("mem:%s:%d", r.Title(), p.published), nil
}

// Report returns the latest report stored under title.
func (p *Publisher) Report(title string) (ports.Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.reports[title]
	return r, ok
}

// Titles lists the stored report titles in sorted order.
func (p *Publisher) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.reports))
	for t := range p.reports {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Published returns how many reports were written in total.
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published
}
