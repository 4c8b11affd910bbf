package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mailsentry/internal/model"
)

func TestRunBatch(t *testing.T) {
	f := newFixture(t)
	files := []string{
		f.writeEML(t, "/in/bill.eml", billEML),
		f.writeEML(t, "/in/order.eml", orderEML),
		f.writeEML(t, "/in/undated.eml", undatedEML),
	}

	ledger := new(mockLedger)
	ledger.On("RecordItem", mock.Anything, mock.Anything).Return(nil)
	p := f.processor(t, Options{}, ledger)

	summary, results, err := RunBatch(context.Background(), p, files, BatchOptions{RunID: "run-1", Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, files[i], r.File)
		assert.Equal(t, "run-1", r.RunID)
	}
	assert.Equal(t, model.ItemFailed, results[2].Status)
	ledger.AssertNumberOfCalls(t, "RecordItem", 3)
}

func TestRunBatch_Limit(t *testing.T) {
	f := newFixture(t)
	files := []string{
		f.writeEML(t, "/in/a.eml", billEML),
		f.writeEML(t, "/in/b.eml", orderEML),
	}
	p := f.processor(t, Options{DryRun: true}, nil)

	summary, results, err := RunBatch(context.Background(), p, files, BatchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.DryRun)
	require.Len(t, results, 1)
	assert.Equal(t, "/in/a.eml", results[0].File)
}

func TestRunBatch_Cancelled(t *testing.T) {
	f := newFixture(t)
	files := []string{f.writeEML(t, "/in/a.eml", billEML)}
	p := f.processor(t, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := RunBatch(ctx, p, files, BatchOptions{Concurrency: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
