package registry

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type fixtureFile struct {
	Cases []domain.CaseSnapshot `yaml:"cases"`
}

// FixtureRegistry serves cases from a YAML document, optionally after a
// simulated network latency.
type FixtureRegistry struct {
	cases   map[string]domain.CaseSnapshot
	latency time.Duration
}

// NewFixtureRegistry loads the embedded fixtures, or the YAML file at path
// when path is not empty.
func NewFixtureRegistry(path string, latency time.Duration) (*FixtureRegistry, error) {
	data := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		data = b
	}
	cases, err := parseFixtures(data)
	if err != nil {
		return nil, err
	}
	return &FixtureRegistry{cases: cases, latency: latency}, nil
}

func parseFixtures(data []byte) (map[string]domain.CaseSnapshot, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	out := make(map[string]domain.CaseSnapshot, len(f.Cases))
	for i, c := range f.Cases {
		if c.Number == "" {
			return nil, fmt.Errorf("fixture %d: missing number", i)
		}
		for _, d := range c.Dispatches {
			if d.Code == "" || !d.Status.Valid() {
				return nil, fmt.Errorf("fixture %s: invalid dispatch %q (status %q)", c.Number, d.Code, d.Status)
			}
		}
		if c.Dispatches == nil {
			c.Dispatches = []domain.Dispatch{}
		}
		out[c.Number] = c
	}
	return out, nil
}

// Search implements Gateway.
func (r *FixtureRegistry) Search(ctx context.Context, number string) (*domain.CaseSnapshot, error) {
	if r.latency > 0 {
		t := time.NewTimer(r.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
	c, ok := r.cases[number]
	if !ok {
		return nil, ErrNotFound
	}
	c.Dispatches = append([]domain.Dispatch(nil), c.Dispatches...)
	return &c, nil
}

// Numbers lists the case numbers known to the fixture set.
func (r *FixtureRegistry) Numbers() []string {
	out := make([]string, 0, len(r.cases))
	for n := range r.cases {
		out = append(out, n)
	}
	return out
}
