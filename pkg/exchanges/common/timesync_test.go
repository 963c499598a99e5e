package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestTimeSyncOffset(t *testing.T) {
	ahead := int64(5 * time.Minute / time.Millisecond)
	ts := NewTimeSync(func(context.Context) (int64, error) {
		return time.Now().UnixMilli() + ahead, nil
	}, quietEntry())
	assert.False(t, ts.Synced())

	require.NoError(t, ts.Sync(context.Background()))
	assert.True(t, ts.Synced())
	assert.InDelta(t, ahead, ts.Offset(), 50)
	assert.InDelta(t, time.Now().UnixMilli()+ahead, ts.Now(), 50)
}

func TestTimeSyncFailureKeepsOffset(t *testing.T) {
	fail := false
	ts := NewTimeSync(func(context.Context) (int64, error) {
		if fail {
			return 0, errors.New("down")
		}
		return time.Now().UnixMilli() - 1000, nil
	}, quietEntry())

	require.NoError(t, ts.Sync(context.Background()))
	before := ts.Offset()
	fail = true
	assert.Error(t, ts.Sync(context.Background()))
	assert.Equal(t, before, ts.Offset())
}
