package types

// Quality selects the backend render quality tier.
type Quality string

const (
	// QualityLow renders at 480p.
	QualityLow Quality = "l"
	// QualityMedium renders at 720p.
	QualityMedium Quality = "m"
	// QualityHigh renders at 1080p.
	QualityHigh Quality = "h"
)

// Valid reports whether q is one of the known quality tiers.
func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// Label returns the human-facing resolution label for a quality tier.
func (q Quality) Label() string {
	switch q {
	case QualityLow:
		return "480p"
	case QualityMedium:
		return "720p"
	case QualityHigh:
		return "1080p"
	}
	return string(q)
}

// Render is one persisted render artifact as reported by the backend.
type Render struct {
	// Server-assigned stable identifier.
	// example: 7f9c2ba4-e88f-11ed-a05b-0242ac120003
	ID string `json:"id" example:"7f9c2ba4-e88f-11ed-a05b-0242ac120003"`
	// User-facing name; defaults to a timestamp-like label.
	// example: Render 2025-08-29 14:02
	Name string `json:"name" example:"Render 2025-08-29 14:02"`
	// RFC 3339 creation time.
	// example: 2025-08-29T14:02:07+00:00
	CreatedAt string `json:"created_at" example:"2025-08-29T14:02:07+00:00"`
	// Quality tier the artifact was rendered at.
	// example: m
	Quality Quality `json:"quality" example:"m"`
}

// RenderResult is the terminal outcome of a render or stitch request.
//
// Transport failures are reported through the same shape (OK=false with a
// message in Log) so callers have a single failure path.
type RenderResult struct {
	// True when the render produced a playable video.
	OK bool `json:"ok"`
	// URL path of the rendered video, empty on failure.
	// example: /api/renders/7f9c2ba4/video
	VideoURL string `json:"mp4_url,omitempty" example:"/api/renders/7f9c2ba4/video"`
	// Full render log (stdout + stderr of the rendering tool).
	Log string `json:"log"`
	// Identifier of the persisted artifact, when one was created.
	RenderID string `json:"render_id,omitempty"`
	// Name assigned to the persisted artifact.
	RenderName string `json:"render_name,omitempty"`
}
