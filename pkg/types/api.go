package types

import "encoding/json"

// RenderRequest is the payload for the backend render endpoints.
type RenderRequest struct {
	// Complete scene source to render.
	SceneCode string `json:"scene_code"`
	// Quality tier: l, m or h. Defaults to l server-side.
	// example: l
	Quality Quality `json:"quality,omitempty" example:"l"`
}

// KeyUpdateRequest updates the backend's in-process API credential.
type KeyUpdateRequest struct {
	Key string `json:"key"`
}

// RenameRequest renames a render artifact.
type RenameRequest struct {
	// New user-facing name.
	// example: Intro sequence
	Name string `json:"name" example:"Intro sequence"`
}

// StitchRequest concatenates existing artifacts into a new one.
// The order of RenderIDs is the order of concatenation.
type StitchRequest struct {
	RenderIDs []string `json:"render_ids"`
	// Optional name for the stitched artifact.
	Name string `json:"name,omitempty"`
}

// OKResponse is the generic {"ok": true} acknowledgement.
type OKResponse struct {
	OK bool `json:"ok"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	// Whether a LaTeX toolchain is available to the renderer.
	LatexAvailable bool `json:"latex_available"`
	// Number of template components the backend discovered.
	// example: 24
	TemplateCount int `json:"template_count" example:"24"`
}

// SketchImage is one storyboard frame snapshot sent for generation.
type SketchImage struct {
	// Frame name, used for ordering context in the prompt.
	Name string `json:"name"`
	// PNG data, base64 encoded.
	Base64 string `json:"base64"`
}

// GenerateRequest asks the backend to turn sketches into scene code.
type GenerateRequest struct {
	Prompt string        `json:"prompt,omitempty"`
	Images []SketchImage `json:"images"`
	// Optional model override.
	Model string `json:"model,omitempty"`
	// Names of catalog components to include in the prompt.
	SelectedComponents []string `json:"selected_components,omitempty"`
}

// ChatMessage is one turn of a refinement conversation.
type ChatMessage struct {
	// example: user
	Role    string `json:"role" example:"user"`
	Content string `json:"content"`
}

// ChatRequest refines previously generated scene code.
type ChatRequest struct {
	Messages           []ChatMessage `json:"messages"`
	Model              string        `json:"model,omitempty"`
	SelectedComponents []string      `json:"selected_components,omitempty"`
}

// GenerateResponse carries generated scene code or a user-facing error.
type GenerateResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// SaveRequest persists project state on the backend.
type SaveRequest struct {
	// Opaque storyboard document; passed through untouched.
	StoryboardJSON json.RawMessage `json:"storyboard_json,omitempty"`
	SceneCode      string          `json:"scene_code,omitempty"`
}

// LoadResponse is the project state returned by GET /api/load.
type LoadResponse struct {
	StoryboardJSON json.RawMessage `json:"storyboard_json"`
	SceneCode      string          `json:"scene_code"`
	HasRender      bool            `json:"has_render"`
}

// TemplateComponent describes one reusable catalog component.
type TemplateComponent struct {
	Name string `json:"name"`
	// Category key, e.g. gates, circuits.
	Category      string   `json:"category"`
	RequiresLatex bool     `json:"requires_latex"`
	BaseClasses   []string `json:"base_classes,omitempty"`
	CharCount     int      `json:"char_count,omitempty"`
}

// TemplateCategory groups components for the UI.
type TemplateCategory struct {
	Name       string              `json:"name"`
	Label      string              `json:"label"`
	Components []TemplateComponent `json:"components"`
}

// TemplateExample describes one complete example scene.
type TemplateExample struct {
	Name          string `json:"name"`
	RequiresLatex bool   `json:"requires_latex"`
	Notebook      string `json:"notebook,omitempty"`
	CharCount     int    `json:"char_count,omitempty"`
}

// TemplatesResponse is returned by GET /api/templates.
type TemplatesResponse struct {
	Categories []TemplateCategory `json:"categories"`
	Examples   []TemplateExample  `json:"examples"`
}

// TemplateSourceResponse is returned by GET /api/templates/{name}/source.
type TemplateSourceResponse struct {
	Name          string `json:"name"`
	Source        string `json:"source"`
	RequiresLatex bool   `json:"requires_latex"`
	IsScene       bool   `json:"is_scene"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// CredentialResponse is the bridge payload for GET /credential.
type CredentialResponse struct {
	Key string `json:"key"`
}

// BackendInfo summarizes the supervised backend for the bridge.
type BackendInfo struct {
	// Lifecycle state: idle, starting, healthy, failed or stopped.
	// example: healthy
	State string `json:"state" example:"healthy"`
	// Loopback port the backend is bound to, 0 unless started.
	// example: 52114
	Port int `json:"port,omitempty" example:"52114"`
	// Process ID of the backend, 0 unless started.
	PID int `json:"pid,omitempty"`
}
