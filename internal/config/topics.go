package config

const (
	// TopicJobCompleted is the NSQ topic for successful job completions,
	// consumed by billing for credit accounting and by the UI push channel.
	TopicJobCompleted = "job.completed"

	// TopicJobFailed is the NSQ topic for terminal job failures.
	TopicJobFailed = "job.failed"
)
