package bulk

// ImportRequest carries a tabular import: the header row first, then data rows.
type ImportRequest struct {
	Records [][]string `json:"records" validate:"required,min=1"`
}

// ImportResponse is the outcome of a committed import.
type ImportResponse struct {
	Report any `json:"report"`
	Commit any `json:"commit,omitempty"`
}
