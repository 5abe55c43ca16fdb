// Package sink delivers a finished export to its destinations: a local JSON file, a SQLite
// run archive, object storage and InfluxDB.
package sink

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/AobaIwaki123/wifi-speed-bench/src/analysis"
	"github.com/AobaIwaki123/wifi-speed-bench/src/logging"
)

// Sink stores an export somewhere.
type Sink interface {
	Name() string
	Write(ctx context.Context, exp *analysis.Export) error
}

// Multi writes to every sink and returns the failures together. A failing sink does not stop
// the others.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Write(ctx context.Context, exp *analysis.Export) error {
	var merr *multierror.Error
	for _, s := range m {
		if err := s.Write(ctx, exp); err != nil {
			logging.Errorf("[sink] %s: %v", s.Name(), err)
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		logging.Infof("[sink] %s: wrote %d runs", s.Name(), len(exp.Runs))
	}
	return merr.ErrorOrNil()
}
