// Package domain holds the shared entities of the report pipeline and the
// key normalization used to address them.
package domain

import (
	"strings"
	"time"
)

// Platform identifies a feedback source.
type Platform string

const (
	PlatformReddit     Platform = "reddit"
	PlatformGitHub     Platform = "github"
	PlatformYouTube    Platform = "youtube"
	PlatformHackerNews Platform = "hackernews"
	PlatformBlueSky    Platform = "bluesky"
)

// RequestID computes the deterministic dedup key for a logical subscription.
// It is a pure function: the lowercased platform tag joined with the
// normalized target by an underscore. Targets are lowercased and any path
// separator is replaced so the id is safe as a row key or filename.
func RequestID(platformType, target string) string {
	return strings.ToLower(strings.TrimSpace(platformType)) + "_" + NormalizeTarget(target)
}

// NormalizeTarget lowercases a target and replaces slashes, so "Owner/Repo"
// and "owner/repo" map to the same key.
func NormalizeTarget(target string) string {
	t := strings.ToLower(strings.TrimSpace(target))

	return strings.ReplaceAll(t, "/", "_")
}

// ReportRequest is a deduplicated subscription record. Identical logical
// subscriptions always resolve to the same ID; SubscriberCount reference
// counts the independent subscribers sharing it.
type ReportRequest struct {
	ID              string    `json:"id"`
	PlatformType    string    `json:"type"`
	Target          string    `json:"target"`
	SubscriberCount int       `json:"subscriberCount"`
	CreatedAt       time.Time `json:"createdAt"`
	// Version backs optimistic concurrency on count updates.
	Version int64 `json:"-"`
}

// Report is one generated report. Immutable once produced; a regeneration
// for the same key produces a new Report that supersedes the cached entry.
type Report struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SubSource    string    `json:"subSource"`
	GeneratedAt  time.Time `json:"generatedAt"`
	CutoffDate   time.Time `json:"cutoffDate"`
	ThreadCount  int       `json:"threadCount"`
	CommentCount int       `json:"commentCount"`
	HTMLContent  string    `json:"htmlContent"`
}

// Key returns the generation key for the report, which matches the dedup key
// of the subscription it was generated for.
func (r *Report) Key() string {
	return RequestID(r.Source, r.SubSource)
}

// RunSummary records the outcome of one scheduled batch run. Append-only.
type RunSummary struct {
	ID               string    `json:"id"`
	ProcessedAt      time.Time `json:"processedAt"`
	TotalRequests    int       `json:"totalRequests"`
	SuccessCount     int       `json:"successCount"`
	FailureCount     int       `json:"failureCount"`
	GeneratedReports []string  `json:"generatedReports"`
	FailedRequests   []string  `json:"failedRequests"`
}

// AdminReportConfig is an admin-managed delivery target. The distributor
// consumes it read-only apart from LastProcessedAt.
type AdminReportConfig struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	EmailRecipient  string     `json:"emailRecipient"`
	PlatformType    string     `json:"type"`
	Target          string     `json:"target"`
	Active          bool       `json:"active"`
	LastProcessedAt *time.Time `json:"lastProcessedAt,omitempty"`
}

// Key returns the generation key for the config's platform and target.
func (c *AdminReportConfig) Key() string {
	return RequestID(c.PlatformType, c.Target)
}

// FeedbackItem is a lightweight listing entry (thread, issue, video) used
// for ranking before full detail is fetched.
type FeedbackItem struct {
	ID           string
	Title        string
	URL          string
	Author       string
	CreatedAt    time.Time
	CommentCount int
	Score        int
}

// Ranking weights for candidate selection.
const (
	EngagementWeightComments = 0.7
	EngagementWeightScore    = 0.3
)

// EngagementScore is the weighted ranking metric for candidate items.
func (f FeedbackItem) EngagementScore() float64 {
	return EngagementWeightComments*float64(f.CommentCount) + EngagementWeightScore*float64(f.Score)
}

// FeedbackDetail is the full item including its flattened comment tree.
type FeedbackDetail struct {
	FeedbackItem
	Body     string
	Comments []Comment
}

// Comment is one comment in an item's discussion, nesting already flattened.
type Comment struct {
	ID        string
	Author    string
	Body      string
	Score     int
	CreatedAt time.Time
}

// JobStatus is the lifecycle state of a queued generation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// GenerationJob tracks a detached report generation so callers can poll its
// outcome instead of firing into the void.
type GenerationJob struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"requestId"`
	PlatformType string     `json:"type"`
	Target       string     `json:"target"`
	Status       JobStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	ReportID     string     `json:"reportId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// DeliveryStatus is the email collaborator's result for one send.
type DeliveryStatus string

const (
	DeliverySent       DeliveryStatus = "sent"
	DeliveryInProgress DeliveryStatus = "in_progress"
	DeliveryFailed     DeliveryStatus = "failed"
)

// Delivered reports whether the status counts as a successful handoff.
// In-progress counts: the provider accepted the message.
func (s DeliveryStatus) Delivered() bool {
	return s == DeliverySent || s == DeliveryInProgress
}
