package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestRegisterValidatesSchedule(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"interval", Job{Name: "a", Task: noop, Every: time.Minute}, false},
		{"crontab", Job{Name: "b", Task: noop, Crontab: "0 0 3 * * *"}, false},
		{"both", Job{Name: "c", Task: noop, Every: time.Minute, Crontab: "0 0 3 * * *"}, true},
		{"neither", Job{Name: "d", Task: noop}, true},
		{"bad crontab", Job{Name: "e", Task: noop, Crontab: "every day"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(time.Second)

			err := s.Register(tt.job)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunRecoversPanicAndSetsRqID(t *testing.T) {
	s := New(time.Second)

	var gotRqID string
	var hasDeadline bool
	s.run(Job{Name: "ok", Task: func(ctx context.Context) error {
		gotRqID = utils.GetRequestIDFromCtx(ctx)
		_, hasDeadline = ctx.Deadline()
		return nil
	}})()

	assert.True(t, hasDeadline)
	assert.NotEmpty(t, gotRqID)

	require.NotPanics(t, s.run(Job{Name: "boom", Task: func(context.Context) error { panic("boom") }}))
}
