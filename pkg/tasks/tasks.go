// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ProfileEmbedTask represents the data structure for an embed-and-index job.
// The profile row is already persisted when the task is queued; the consumer
// recomputes the representative vector from the stored abstracts.
type ProfileEmbedTask struct {
	ProfileID  string `json:"profile_id"`
	ProfileURL string `json:"profile_url"`
	Name       string `json:"name"`
}
