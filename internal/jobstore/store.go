package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/mailmatch/internal/db"
)

// Store persists job postings, candidates and matches in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// CreateJob stores a new job posting. Missing id, status and creation time
// are filled in.
func (s *Store) CreateJob(ctx context.Context, j *JobPosting) (*JobPosting, error) {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = JobActive
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	var salary any
	if j.SalaryRange != "" {
		salary = j.SalaryRange
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_postings (id, title, company, description, requirements,
			location, salary_range, status, embedding_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Title, j.Company, j.Description, j.Requirements,
		j.Location, salary, string(j.Status), j.EmbeddingID, j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting job posting: %w", err)
	}
	return j, nil
}

// GetJob returns the job posting with the given id, or nil if it does not
// exist.
func (s *Store) GetJob(ctx context.Context, id string) (*JobPosting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, company, description, requirements, location,
			COALESCE(salary_range, ''), status, embedding_id, created_at
		FROM job_postings WHERE id = ?`, id)

	var j JobPosting
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.Requirements,
		&j.Location, &j.SalaryRange, &j.Status, &j.EmbeddingID, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job posting: %w", err)
	}
	return &j, nil
}

// ListJobs returns job postings, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status JobStatus) ([]JobPosting, error) {
	query := `
		SELECT id, title, company, description, requirements, location,
			COALESCE(salary_range, ''), status, embedding_id, created_at
		FROM job_postings`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing job postings: %w", err)
	}
	defer rows.Close()

	var out []JobPosting
	for rows.Next() {
		var j JobPosting
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Description, &j.Requirements,
			&j.Location, &j.SalaryRange, &j.Status, &j.EmbeddingID, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning job posting: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetJobEmbeddingID records the vector index entry for a job posting.
func (s *Store) SetJobEmbeddingID(ctx context.Context, id, embeddingID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_postings SET embedding_id = ? WHERE id = ?`, embeddingID, id)
	if err != nil {
		return fmt.Errorf("updating job embedding id: %w", err)
	}
	return nil
}

// CreateCandidate stores a new candidate profile.
func (s *Store) CreateCandidate(ctx context.Context, c *Candidate) (*Candidate, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.LastUpdated.IsZero() {
		c.LastUpdated = now
	}

	var loc any
	if c.PreferredLocation != "" {
		loc = c.PreferredLocation
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, name, email, resume_text, skills, experience,
			preferred_location, embedding_id, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.ResumeText, c.Skills, c.Experience,
		loc, c.EmbeddingID, c.CreatedAt, c.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("inserting candidate: %w", err)
	}
	return c, nil
}

// GetCandidate returns the candidate with the given id, or nil if it does
// not exist.
func (s *Store) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, resume_text, skills, experience,
			COALESCE(preferred_location, ''), embedding_id, created_at, last_updated
		FROM candidates WHERE id = ?`, id)

	var c Candidate
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.ResumeText, &c.Skills, &c.Experience,
		&c.PreferredLocation, &c.EmbeddingID, &c.CreatedAt, &c.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning candidate: %w", err)
	}
	return &c, nil
}

// ListCandidates returns every candidate, newest first.
func (s *Store) ListCandidates(ctx context.Context) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, resume_text, skills, experience,
			COALESCE(preferred_location, ''), embedding_id, created_at, last_updated
		FROM candidates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.ResumeText, &c.Skills, &c.Experience,
			&c.PreferredLocation, &c.EmbeddingID, &c.CreatedAt, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCandidateEmbeddingID records the vector index entry for a candidate.
func (s *Store) SetCandidateEmbeddingID(ctx context.Context, id, embeddingID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET embedding_id = ?, last_updated = ? WHERE id = ?`,
		embeddingID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating candidate embedding id: %w", err)
	}
	return nil
}

// UpsertMatch records a scored pairing. A pair is scored at most once per
// row: rescoring overwrites score and analysis in place, keeping the row id,
// creation time and review status. New rows start pending.
func (s *Store) UpsertMatch(ctx context.Context, jobID, candidateID string, score float64, analysis string) (*Match, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, job_id, candidate_id, match_score, ai_analysis, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, candidate_id) DO UPDATE SET
			match_score = excluded.match_score,
			ai_analysis = excluded.ai_analysis,
			updated_at = excluded.updated_at`,
		uuid.New().String(), jobID, candidateID, score, analysis, string(MatchPending), now, now)
	if err != nil {
		return nil, fmt.Errorf("upserting match: %w", err)
	}
	return s.GetMatchByPair(ctx, jobID, candidateID)
}

const matchColumns = `id, job_id, candidate_id, match_score, ai_analysis, status, created_at, updated_at`

// GetMatchByPair returns the match for a (job, candidate) pair, or nil.
func (s *Store) GetMatchByPair(ctx context.Context, jobID, candidateID string) (*Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE job_id = ? AND candidate_id = ?`,
		jobID, candidateID)
	return scanMatch(row)
}

// GetMatch returns the match with the given id, or nil.
func (s *Store) GetMatch(ctx context.Context, id string) (*Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

// ListMatchesForJob returns a job's matches, best score first.
func (s *Store) ListMatchesForJob(ctx context.Context, jobID string) ([]Match, error) {
	return s.listMatches(ctx, `job_id`, jobID)
}

// ListMatchesForCandidate returns a candidate's matches, best score first.
func (s *Store) ListMatchesForCandidate(ctx context.Context, candidateID string) ([]Match, error) {
	return s.listMatches(ctx, `candidate_id`, candidateID)
}

func (s *Store) listMatches(ctx context.Context, column, id string) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE `+column+` = ?
		 ORDER BY match_score DESC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateMatchStatus moves a match through review. Returns the updated match,
// or nil if the id is unknown.
func (s *Store) UpdateMatchStatus(ctx context.Context, id string, status MatchStatus) (*Match, error) {
	if !ValidMatchStatus(status) {
		return nil, fmt.Errorf("invalid match status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("updating match status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetMatch(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	err := row.Scan(&m.ID, &m.JobID, &m.CandidateID, &m.MatchScore, &m.AIAnalysis,
		&m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning match: %w", err)
	}
	return &m, nil
}
