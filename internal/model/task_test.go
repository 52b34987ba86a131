package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusScan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    TaskStatus
		wantErr bool
	}{
		{name: "int64 pending", src: int64(0), want: StatusPending},
		{name: "int64 done", src: int64(1), want: StatusDone},
		{name: "int32", src: int32(1), want: StatusDone},
		{name: "bool", src: true, want: StatusDone},
		{name: "bytes", src: []byte("1"), want: StatusDone},
		{name: "third state", src: int64(2), wantErr: true},
		{name: "negative", src: int64(-1), wantErr: true},
		{name: "long bytes", src: []byte("10"), wantErr: true},
		{name: "string", src: "done", wantErr: true},
		{name: "nil", src: nil, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s TaskStatus
			err := s.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestTaskStatusValue(t *testing.T) {
	v, err := StatusDone.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = TaskStatus(5).Value()
	assert.Error(t, err)
}

func TestTaskStatusJSON(t *testing.T) {
	raw, err := json.Marshal(Task{TaskID: 3, UserID: "u1", TaskName: "write", Status: StatusDone})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"status":"done"`)

	var task Task
	require.NoError(t, json.Unmarshal([]byte(`{"task_id":3,"status":"pending"}`), &task))
	assert.Equal(t, StatusPending, task.Status)
	assert.False(t, task.IsDone())

	err = json.Unmarshal([]byte(`{"status":"archived"}`), &task)
	assert.Error(t, err)
}

func TestTaskStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "TaskStatus(7)", TaskStatus(7).String())

	s, err := ParseTaskStatus("done")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, s)
}

func TestUserTasksHiddenFromJSON(t *testing.T) {
	raw, err := json.Marshal(User{UserID: "u1", PendingCount: 2, Tasks: []Task{{TaskID: 1}}})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "task_id")
	assert.Contains(t, string(raw), `"pending_count":2`)
}
