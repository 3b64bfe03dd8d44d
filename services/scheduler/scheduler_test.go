package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shule/backend/core"
	"github.com/shule/backend/core/finance"
)

type sweeperFunc func(ctx context.Context, today core.Date) ([]finance.Invoice, error)

func (f sweeperFunc) MarkOverdueInvoices(ctx context.Context, today core.Date) ([]finance.Invoice, error) {
	return f(ctx, today)
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	noop := sweeperFunc(func(context.Context, core.Date) ([]finance.Invoice, error) { return nil, nil })

	s, err := New(conf, noop, core.NewNopLogger())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)

	conf.Finance.OverdueSweepSpec = "every tuesday"
	_, err = New(conf, noop, core.NewNopLogger())
	assert.Error(t, err)
}

func TestScheduler_SweepOverdue(t *testing.T) {
	restore := nowFunc
	nowFunc = func() time.Time { return time.Date(2024, time.February, 15, 1, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { nowFunc = restore })

	var gotDay core.Date
	s, err := New(core.NewTestConfig(), sweeperFunc(func(_ context.Context, today core.Date) ([]finance.Invoice, error) {
		gotDay = today
		return []finance.Invoice{{Number: "INV-2024-0001"}}, nil
	}), core.NewNopLogger())
	require.NoError(t, err)

	n, err := s.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, core.NewDate(2024, time.February, 15), gotDay)

	boom := errors.New("db down")
	s.finance = sweeperFunc(func(context.Context, core.Date) ([]finance.Invoice, error) { return nil, boom })
	_, err = s.SweepOverdue(context.Background())
	assert.Equal(t, boom, err)
}

type recordingLogger struct {
	core.Logger
	errors []string
	args   [][]interface{}
}

func (l *recordingLogger) Error(msg string, args ...interface{}) {
	l.errors = append(l.errors, msg)
	l.args = append(l.args, args)
}

func Test_cronLogger(t *testing.T) {
	rec := &recordingLogger{Logger: core.NewNopLogger()}
	job := cron.NewChain(cron.Recover(cronLogger{rec})).Then(cron.FuncJob(func() { panic("boom") }))

	assert.NotPanics(t, job.Run)
	require.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "cron: panic: boom")
	require.Len(t, rec.args[0], 2)
	fields, ok := rec.args[0][1].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "stack")
}
