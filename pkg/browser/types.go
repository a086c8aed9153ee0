package browser

// ActionType identifies the kind of work an automation request performs.
type ActionType string

const (
	// ActionNavigate loads a URL and returns the rendered document.
	ActionNavigate ActionType = "navigate"

	// ActionExtract loads a URL and returns cleaned page content.
	ActionExtract ActionType = "extract"

	// ActionScreenshot loads a URL and captures a PNG of the page.
	ActionScreenshot ActionType = "screenshot"

	// ActionEvaluate loads a URL and runs a JavaScript expression on it.
	ActionEvaluate ActionType = "evaluate"
)

// Valid reports whether t names a supported action.
func (t ActionType) Valid() bool {
	switch t {
	case ActionNavigate, ActionExtract, ActionScreenshot, ActionEvaluate:
		return true
	default:
		return false
	}
}

// ExtractFormat specifies the format for content extraction.
type ExtractFormat string

const (
	// FormatText extracts plain text only
	FormatText ExtractFormat = "text"

	// FormatMarkdown extracts content as Markdown (default)
	FormatMarkdown ExtractFormat = "markdown"

	// FormatHTML extracts cleaned HTML with scripts and styles removed
	FormatHTML ExtractFormat = "html"
)

// Action is one unit of browser work. It is immutable once built; a zero
// field means "use the default".
type Action struct {
	// Type selects the operation
	Type ActionType `json:"type"`

	// URL is the navigation target; required for every action type
	URL string `json:"url"`

	// WaitUntil specifies when navigation is considered complete.
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string `json:"wait_until,omitempty"`

	// Selector optionally limits extraction to matching elements
	Selector string `json:"selector,omitempty"`

	// Format selects the extraction format (extract only)
	Format ExtractFormat `json:"format,omitempty"`

	// MaxLength caps extracted content length in characters
	MaxLength int `json:"max_length,omitempty"`

	// FullPage captures the full scrollable page (screenshot only)
	FullPage bool `json:"full_page,omitempty"`

	// Script is the JavaScript expression to run (evaluate only)
	Script string `json:"script,omitempty"`
}

// Result is the successful outcome of an executed Action. Fields not
// relevant to the action type are left zero.
type Result struct {
	// URL is the final page URL after redirects
	URL string `json:"url"`

	// Title is the document title
	Title string `json:"title,omitempty"`

	// Status is the HTTP status of the main document response
	Status int `json:"status,omitempty"`

	// HTML is the rendered document (navigate)
	HTML string `json:"html,omitempty"`

	// Content is the extracted content (extract)
	Content string `json:"content,omitempty"`

	// Truncated reports that Content was cut at MaxLength
	Truncated bool `json:"truncated,omitempty"`

	// Screenshot is the captured PNG (screenshot)
	Screenshot []byte `json:"screenshot,omitempty"`

	// Value is the evaluation result (evaluate)
	Value any `json:"value,omitempty"`
}

// Default values for actions and launches
const (
	DefaultMaxLength      = 10000
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultWaitUntil      = "load"
)
