package models

// FileLocation points at one analysis artifact of a processed sample, e.g.
// its read alignments or a variant list.
type FileLocation struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Exists   bool   `json:"exists"`
}
