// Package scheduler runs the periodic jobs of the API process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/finance"
)

const jobTimeout = 5 * time.Minute

var nowFunc = time.Now

// OverdueSweeper is the part of finance.Service the scheduler needs.
type OverdueSweeper interface {
	MarkOverdueInvoices(ctx context.Context, today core.Date) ([]finance.Invoice, error)
}

type Scheduler struct {
	cron    *cron.Cron
	finance OverdueSweeper
	logger  core.Logger
}

// New registers the jobs; nothing runs until Start.
func New(conf *core.Config, fin OverdueSweeper, logger core.Logger) (*Scheduler, error) {
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		finance: fin,
		logger:  logger,
	}
	spec := conf.Finance.OverdueSweepSpec
	if spec == "" {
		spec = "@daily"
	}
	if _, err := s.cron.AddFunc(spec, s.runOverdueSweep); err != nil {
		return nil, errors.Wrapf(err, "scheduling overdue sweep %q", spec)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runOverdueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, _ = s.SweepOverdue(ctx)
}

// SweepOverdue flags the invoices past due as of today.
func (s *Scheduler) SweepOverdue(ctx context.Context) (int, error) {
	invoices, err := s.finance.MarkOverdueInvoices(ctx, core.DateOf(nowFunc()))
	if err != nil {
		s.logger.Error(fmt.Sprintf("overdue sweep: %v", err), err)
		return 0, err
	}
	if len(invoices) > 0 {
		s.logger.Info(fmt.Sprintf("overdue sweep: %d invoice(s) flagged", len(invoices)))
	}
	return len(invoices), nil
}

// cronLogger reports cron's own events (recovered panics, skipped runs) through core.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keyValues(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), err, keyValues(keysAndValues))
}

func keyValues(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
