// Package asset holds the generated-asset versions that jobs produce and
// depend on. A job referencing a version that has not yet materialised its
// output waits; a reference to a deleted version can never resolve.
package asset

// Readiness is the state of a dependency resource as seen by the queue.
type Readiness string

const (
	Ready   Readiness = "ready"
	Pending Readiness = "pending"
	Deleted Readiness = "deleted"
)

type Version struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"` // image, video, audio
	OutputURL string `json:"output_url,omitempty"`
}
