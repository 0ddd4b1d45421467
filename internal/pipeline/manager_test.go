package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipforge/yt2tiktok/internal/model"
)

func trackingManager(ids ...string) *Manager {
	m := &Manager{tasks: make(map[string]*model.MediaTask)}
	for i, id := range ids {
		m.tasks[id] = &model.MediaTask{
			ID:          id,
			Stage:       model.StageQueued,
			SubmittedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
	}
	return m
}

func TestManager_RecordTracksStages(t *testing.T) {
	m := trackingManager("t1")

	m.record(model.Event{TaskID: "t1", Stage: model.StageInfo, Title: "My Video", Thumbnail: "thumb.jpg"})
	m.record(model.Event{TaskID: "t1", Stage: model.StageDownloading, Progress: 40})

	task, ok := m.Task("t1")
	require.True(t, ok)
	assert.Equal(t, model.StageDownloading, task.Stage)
	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, "My Video", task.Title)
	assert.Equal(t, "thumb.jpg", task.Thumbnail)
	assert.True(t, task.FinishedAt.IsZero())
}

func TestManager_RecordTerminalStates(t *testing.T) {
	m := trackingManager("ok", "bad")

	m.record(model.Event{
		TaskID: "ok", Stage: model.StageCompleted, Progress: 100,
		OutputFiles: []string{"a_part1.mp4", "a_part2.mp4"},
	})
	m.record(model.Event{TaskID: "bad", Stage: model.StageError, Message: "download exploded"})

	done, ok := m.Task("ok")
	require.True(t, ok)
	assert.Equal(t, []string{"a_part1.mp4", "a_part2.mp4"}, done.OutputFiles)
	assert.False(t, done.FinishedAt.IsZero())
	assert.Empty(t, done.LastError)

	failed, ok := m.Task("bad")
	require.True(t, ok)
	assert.Equal(t, model.StageError, failed.Stage)
	assert.Equal(t, "download exploded", failed.LastError)
	assert.False(t, failed.FinishedAt.IsZero())
}

func TestManager_RecordUnknownTask(t *testing.T) {
	m := trackingManager()
	m.record(model.Event{TaskID: "ghost", Stage: model.StageInfo})

	_, ok := m.Task("ghost")
	assert.False(t, ok)
}

func TestManager_TaskReturnsCopy(t *testing.T) {
	m := trackingManager("t1")

	task, ok := m.Task("t1")
	require.True(t, ok)
	task.Title = "mutated"

	again, _ := m.Task("t1")
	assert.Empty(t, again.Title, "callers must not reach the live record")
}

func TestManager_TasksNewestFirst(t *testing.T) {
	m := trackingManager("old", "mid", "new")

	tasks := m.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "new", tasks[0].ID)
	assert.Equal(t, "old", tasks[2].ID)
}
