package jobstore

import "time"

// JobStatus is the lifecycle state of a job posting.
type JobStatus string

const (
	JobActive  JobStatus = "active"
	JobFilled  JobStatus = "filled"
	JobExpired JobStatus = "expired"
)

// MatchStatus is the review state of a job/candidate match.
type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchAccepted MatchStatus = "accepted"
	MatchRejected MatchStatus = "rejected"
)

// JobPosting is one open position.
type JobPosting struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Description  string    `json:"description"`
	Requirements string    `json:"requirements"`
	Location     string    `json:"location"`
	SalaryRange  string    `json:"salary_range,omitempty"`
	Status       JobStatus `json:"status"`
	EmbeddingID  string    `json:"embedding_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Candidate is one job seeker profile.
type Candidate struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	ResumeText        string    `json:"resume_text"`
	Skills            string    `json:"skills"`
	Experience        string    `json:"experience"`
	PreferredLocation string    `json:"preferred_location,omitempty"`
	EmbeddingID       string    `json:"embedding_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Match is the scored pairing of a job and a candidate. At most one match
// row exists per (job, candidate) pair; rescoring updates it in place.
type Match struct {
	ID          string      `json:"id"`
	JobID       string      `json:"job_id"`
	CandidateID string      `json:"candidate_id"`
	MatchScore  float64     `json:"match_score"`
	AIAnalysis  string      `json:"ai_analysis"`
	Status      MatchStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ValidMatchStatus reports whether s is an accepted review state.
func ValidMatchStatus(s MatchStatus) bool {
	switch s {
	case MatchPending, MatchAccepted, MatchRejected:
		return true
	}
	return false
}
