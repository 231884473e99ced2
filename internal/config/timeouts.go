package config

import "time"

// jobTimeouts is the per-type processing deadline used by the timeout
// sweeper. Video synthesis runs much longer than a single image or a script
// pass. Types not listed here fall back to the configured default.
var jobTimeouts = map[string]time.Duration{
	"image_gen":       5 * time.Minute,
	"video_gen":       30 * time.Minute,
	"audio_gen":       10 * time.Minute,
	"script_analysis": 3 * time.Minute,
}

// JobTimeout returns the processing deadline for a job type.
func (c *Config) JobTimeout(jobType string) time.Duration {
	if d, ok := jobTimeouts[jobType]; ok {
		return d
	}
	return c.DefaultJobTimeout
}
