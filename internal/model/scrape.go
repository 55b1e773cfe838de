package model

// ScrapeResult is the best-effort summary extracted from a documentation page.
type ScrapeResult struct {
	Overview     string   `json:"overview"`
	Examples     []string `json:"examples"`
	Requirements []string `json:"requirements"`
	IsRestAPI    bool     `json:"isRestApi"`
	Error        string   `json:"error,omitempty"`
}

// Failed reports whether the fetch or parse failed.
func (r *ScrapeResult) Failed() bool {
	return r.Error != ""
}
