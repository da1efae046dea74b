package schemas

// Collection caps applied while building a PageContext. They bound the payload
// handed to the planning API, which has its own token budget.
const (
	MaxLinksPerPage   = 30
	MaxFormsPerPage   = 10
	MaxButtonsPerPage = 20
	MaxInputsPerForm  = 10
	MaxHTMLBytes      = 50 * 1024
)

// PageContext is the structural snapshot of a single crawled URL. It is built
// once by the crawler and immutable afterwards.
type PageContext struct {
	URL     string       `json:"url"`
	Title   string       `json:"title"`
	HTML    string       `json:"html"`
	Links   []LinkInfo   `json:"links"`
	Forms   []FormInfo   `json:"forms"`
	Buttons []ButtonInfo `json:"buttons"`
	// Inputs holds standalone inputs only; inputs inside a form are listed on
	// that form.
	Inputs []InputInfo `json:"inputs"`
}

// LinkInfo describes an anchor element.
type LinkInfo struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

// ButtonInfo describes a clickable control.
type ButtonInfo struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Selector string `json:"selector"`
}

// InputInfo describes a fillable field. Label is populated when an associated
// <label> element was found.
type InputInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder"`
	Selector    string `json:"selector"`
	Label       string `json:"label,omitempty"`
}

// FormInfo describes a form and its inputs.
type FormInfo struct {
	Action   string      `json:"action"`
	Method   string      `json:"method"`
	Selector string      `json:"selector"`
	Inputs   []InputInfo `json:"inputs"`
}

// CrawlResult is the envelope handed to the planning API: the collected page
// contexts plus the outcome of the single authentication attempt, if one was
// made.
type CrawlResult struct {
	Pages []PageContext `json:"pages"`
	Auth  *AuthResult   `json:"auth,omitempty"`
}
