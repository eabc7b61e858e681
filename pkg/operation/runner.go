// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/tracksync/pkg/log"
)

// 🏃 Runner executes operations with bounded parallelism
type Runner struct {
	parallelism int
}

// 🏗️ NewRunner creates a new runner. parallelism below one runs operations
// one at a time.
func NewRunner(parallelism int) *Runner {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Runner{parallelism: parallelism}
}

// 🏃 Run executes every operation and returns one report per operation, in
// input order. A failing operation does not stop the others; the returned
// error joins every failure.
func (r *Runner) Run(ctx context.Context, ops ...Operation) ([]*Report, error) {
	reports := make([]*Report, len(ops))

	var g errgroup.Group
	g.SetLimit(r.parallelism)

	for i, op := range ops {
		g.Go(func() error {
			reports[i] = r.runOne(ctx, op)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, rep := range reports {
		if rep.Err != nil {
			errs = append(errs, errors.Errorf("%s %s: %w", rep.Operation, rep.Target, rep.Err))
		}
	}

	return reports, errors.Join(errs...)
}

func (r *Runner) runOne(ctx context.Context, op Operation) *Report {
	target := op.Target()
	report := &Report{
		RunID:     uuid.NewString(),
		Operation: op.Name(),
		Target:    target.Name,
	}

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", report.RunID).
		Str("operation", report.Operation).
		Str("target", report.Target).
		Logger()
	ctx = logger.WithContext(ctx)

	console, flush := log.FromContext(ctx).Buffered()
	defer flush()
	ctx = log.NewContext(ctx, console)

	console.StartAccount(ctx, log.AccountRun{
		Name:     target.Name,
		Provider: target.Port.Name(),
		Root:     target.Root(),
	})

	start := time.Now()
	err := op.Execute(ctx)
	report.Elapsed = time.Since(start)
	report.apply(console.EndAccount(ctx))

	if err != nil {
		report.Err = err
		console.Errorf("%s %s: %v", report.Operation, report.Target, err)
		logger.Error().Err(err).Dur("elapsed", report.Elapsed).Msg("operation failed")
		return report
	}

	logger.Info().Dur("elapsed", report.Elapsed).Msg("operation complete")
	return report
}
