package pg

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobrelay/internal/domain/job"
)

func TestArchive_RoundTrip(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	a, err := NewArchive(ctx, dsn, nil)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Ping(ctx))

	// уникальный id, чтобы не пересекаться с данными других прогонов
	jobID := "job-test-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, a.Archive(ctx, job.Entry{Seq: 1, Timestamp: base, JobID: jobID,
		Payload: job.Payload{Event: job.EventDispatch, Title: "one", Request: "http://x"}}))
	require.NoError(t, a.Archive(ctx, job.Entry{Seq: 2, Timestamp: base.Add(time.Second), JobID: jobID,
		Payload: job.Payload{Event: job.EventLimitReached, Message: "Retry limit of 1 reached, job stopped"}}))

	rows, err := a.Recent(ctx, jobID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, job.EventLimitReached, rows[0].Event)
	assert.True(t, base.Equal(rows[1].Timestamp))

	var p job.Payload
	require.NoError(t, json.Unmarshal(rows[1].Payload, &p))
	assert.Equal(t, "one", p.Title)

	limited, err := a.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := a.Recent(ctx, "job-missing-"+uuid.NewString(), 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
