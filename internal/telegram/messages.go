package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/divviup/divviup-console/internal/models"
)

// maxListed caps the jobs shown by /failed.
const maxListed = 10

// formatFailedJob formats the notification for a newly failed job
func formatFailedJob(job models.QueueJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔴 <b>Job failed</b>: %s\n\n", html.EscapeString(jobLabel(job))))
	sb.WriteString(fmt.Sprintf("ID: <code>%s</code>\n", job.ID))
	sb.WriteString(fmt.Sprintf("Failures: %d\n", job.FailureCount))
	if msg := job.Error(); msg != "" {
		sb.WriteString(fmt.Sprintf("Error: <code>%s</code>\n", html.EscapeString(msg)))
	}
	sb.WriteString(fmt.Sprintf("\n<i>%s</i>", job.UpdatedAt.UTC().Format("2006-01-02 15:04:05")))
	return sb.String()
}

// formatJobList formats the /failed reply
func formatJobList(jobs []models.QueueJob, now time.Time) string {
	if len(jobs) == 0 {
		return "✅ No failed jobs."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Failed jobs</b> (%d)\n\n", len(jobs)))
	for i, job := range jobs {
		if i >= maxListed {
			sb.WriteString(fmt.Sprintf("… and %d more", len(jobs)-maxListed))
			break
		}
		sb.WriteString(fmt.Sprintf("• %s <code>%s</code> %s\n",
			html.EscapeString(jobLabel(job)),
			job.ID,
			formatTimeAgo(job.UpdatedAt, now),
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatJob formats the /job reply
func formatJob(job *models.QueueJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", statusEmoji(job.Status), html.EscapeString(jobLabel(*job))))
	sb.WriteString(fmt.Sprintf("ID: <code>%s</code>\n", job.ID))
	sb.WriteString(fmt.Sprintf("Status: %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Failures: %d\n", job.FailureCount))
	sb.WriteString(fmt.Sprintf("Created: %s\n", job.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Updated: %s\n", job.UpdatedAt.UTC().Format("2006-01-02 15:04:05")))
	if job.ScheduledAt != nil {
		sb.WriteString(fmt.Sprintf("Scheduled: %s\n", job.ScheduledAt.UTC().Format("2006-01-02 15:04:05")))
	}
	if msg := job.Error(); msg != "" {
		sb.WriteString(fmt.Sprintf("Error: <code>%s</code>\n", html.EscapeString(msg)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func jobLabel(job models.QueueJob) string {
	label := job.Type()
	if label == "" {
		label = "unknown job"
	}
	if v := job.Version(); v != "" {
		label += " (" + v + ")"
	}
	return label
}

func statusEmoji(status models.JobStatus) string {
	switch status {
	case models.JobFailed:
		return "🔴"
	case models.JobSuccess:
		return "🟢"
	default:
		return "🟡"
	}
}

func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(duration.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(duration.Hours()/24))
	}
}

// formatHelpMessage returns the help message
func formatHelpMessage() string {
	return `ℹ️ <b>Divvi Up queue bot</b>

Failed background jobs are reported here as they happen.

/failed - list failed jobs
/job &lt;id&gt; - show one job
/help - this message`
}
