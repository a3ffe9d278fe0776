package activity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/activity"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/dbtest"
)

func TestRecordAndList(t *testing.T) {
	db := dbtest.Open(t)
	l := activity.NewLog(db.DB)
	ctx := context.Background()

	l.Record(ctx,
		activity.New(7, activity.ActionOrderCreated, "order %d", 1),
		activity.New(8, activity.ActionStockAdjusted, "medicine %d delta %d", 3, 10),
	)

	all, err := l.List(ctx, activity.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, activity.ActionStockAdjusted, all[0].Action)
	assert.Equal(t, "order 1", all[1].Details)
	assert.False(t, all[1].CreatedAt.IsZero())

	mine, err := l.List(ctx, activity.Filter{UserID: 7})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(7), mine[0].UserID)
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	db := dbtest.Open(t)
	l := activity.NewLog(db.DB)
	require.NoError(t, db.Close())

	assert.NotPanics(t, func() {
		l.Record(context.Background(), activity.New(1, activity.ActionOrderCreated, "order 9"))
	})
}

func TestRecordOnNilLog(t *testing.T) {
	var l *activity.Log
	assert.NotPanics(t, func() {
		l.Record(context.Background(), activity.New(1, activity.ActionOrderCreated, ""))
	})
}
