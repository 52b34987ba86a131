package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:30", want: "0 30 9 * * *"},
		{in: "00:00", want: "0 0 0 * * *"},
		{in: "23:59", want: "0 59 23 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "1:2:3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := buildDailySpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC)

	_, err := s.ScheduleSpec("@every 1h", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleDaily("07:15", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval(30*time.Minute, func() {})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Entries())

	_, err = s.ScheduleSpec("", func() {})
	assert.Error(t, err)
	_, err = s.ScheduleSpec("not a spec", func() {})
	assert.Error(t, err)
	_, err = s.ScheduleInterval(0, func() {})
	assert.Error(t, err)
	assert.Equal(t, 3, s.Entries())
}

func TestSchedulerRunsJob(t *testing.T) {
	s := NewSchedulerService(time.UTC)
	ran := make(chan struct{}, 1)
	_, err := s.ScheduleSpec("@every 1s", func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
}
