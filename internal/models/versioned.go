package models

// Versioned carries the optimistic-lock counter. Embed it anonymously.
type Versioned struct {
	RowVersion int64 `json:"rowVersion"`
}

func (v *Versioned) GetRowVersion() int64  { return v.RowVersion }
func (v *Versioned) SetRowVersion(n int64) { v.RowVersion = n }
