package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"task-tracker/internal/model"
	"task-tracker/internal/repository"
)

// maxListedTasks caps how many pending tasks a summary lists.
const maxListedTasks = 20

// ReportService builds human-readable summaries of a user's tasks.
type ReportService struct {
	taskRepo *repository.TaskRepository
}

func NewReportService(taskRepo *repository.TaskRepository) *ReportService {
	return &ReportService{taskRepo: taskRepo}
}

// Summary renders the user's counters and open tasks as Telegram HTML.
func (s *ReportService) Summary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.taskRepo.ListByUser(ctx, user.UserID)
	if err != nil {
		return "", storageError("summary", err)
	}

	var pending []model.Task
	for _, task := range tasks {
		if !task.IsDone() {
			pending = append(pending, task)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Task report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("🔥 Pending: <b>%d</b>\n", user.PendingCount))
	builder.WriteString(fmt.Sprintf("✅ Done: <b>%d</b>\n", user.DoneCount))

	countedPending, countedDone := expectedCounters(tasks)
	if countedPending != user.PendingCount || countedDone != user.DoneCount {
		builder.WriteString("⚠️ Counters are being rechecked.\n")
	}

	builder.WriteString("\n<b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for i, task := range pending {
			if i == maxListedTasks {
				builder.WriteString(fmt.Sprintf("… and %d more\n", len(pending)-maxListedTasks))
				break
			}
			builder.WriteString(formatTask(task))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTask(task model.Task) string {
	title := html.EscapeString(strings.TrimSpace(task.TaskName))
	return fmt.Sprintf("🟢 #%d %s\n", task.TaskID, title)
}
