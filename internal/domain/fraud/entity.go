package fraud

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one recorded delivery that failed verification.
type Attempt struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Provider  string    `db:"provider" json:"provider"`
	SourceIP  string    `db:"source_ip" json:"source_ip"`
	Kind      string    `db:"kind" json:"kind"`
	Detail    string    `db:"detail" json:"detail"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Alert is raised when one source IP accumulates enough failed attempts
// inside the detection window.
type Alert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	SourceIP  string    `db:"source_ip" json:"source_ip"`
	Attempts  int       `db:"attempts" json:"attempts"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
