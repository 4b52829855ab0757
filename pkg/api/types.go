package api

import (
	"io"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/taxonline/admin/cli/pkg/session"
	"github.com/taxonline/admin/cli/pkg/stream"
)

// Timestamp decodes the backend's ISO-8601 datetimes, which usually carry
// no zone offset. Those are read as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// String formats the time for tables; zero prints as "-".
func (t Timestamp) String() string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// Document types accepted by the indexing pipeline.
var DocTypes = []string{"code", "circulaire", "loi", "decret", "instruction"}

// Fiscal domains used to tag documents and test cases.
var Domains = []string{"TVA", "IS", "IRG", "TAP", "TFP", "Douanes", "Timbre", "Autre"}

// Auth

type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         session.User `json:"user"`
}

// Profile is the answer of /auth/me.
type Profile struct {
	session.User
	LastLogin Timestamp `json:"last_login"`
}

type UserInput struct {
	Username string       `json:"username" validate:"required,min=3"`
	Email    string       `json:"email" validate:"required,email"`
	Password string       `json:"password" validate:"required,min=8"`
	FullName string       `json:"full_name,omitempty"`
	Role     session.Role `json:"role" validate:"required,oneof=admin editor viewer"`
}

type CreatedUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// Documents

type Document struct {
	ID           int       `json:"id"`
	Filename     string    `json:"filename"`
	DocType      string    `json:"doc_type"`
	Year         int       `json:"year"`
	Domain       string    `json:"domain"`
	Tags         []string  `json:"tags"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	QualityScore *float64  `json:"quality_score"`
	CreatedAt    Timestamp `json:"created_at"`
}

type DocumentFilter struct {
	Status  string
	Domain  string
	DocType string
}

// UploadMeta is applied to every file of one upload.
type UploadMeta struct {
	DocType string   `validate:"required,oneof=code circulaire loi decret instruction"`
	Year    int      `validate:"required,min=1962,max=2100"`
	Domain  string   `validate:"required,oneof=TVA IS IRG TAP TFP Douanes Timbre Autre"`
	Tags    []string `validate:"dive,required"`
}

type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

type UploadedDocument struct {
	DocumentID int    `json:"document_id"`
	JobID      int    `json:"job_id"`
	Filename   string `json:"filename"`
}

type UploadResult struct {
	Uploaded []UploadedDocument `json:"uploaded"`
}

// Pipeline

type PipelineJob struct {
	ID          int            `json:"id"`
	DocumentID  int            `json:"document_id"`
	Status      string         `json:"status"`
	Stage       string         `json:"stage"`
	Progress    float64        `json:"progress"`
	Logs        []stream.Event `json:"logs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   Timestamp      `json:"started_at"`
	CreatedAt   Timestamp      `json:"created_at"`
	CompletedAt Timestamp      `json:"completed_at"`
}

// Rollbackable reports whether the backend accepts a rollback of the job.
func (j PipelineJob) Rollbackable() bool {
	return j.Status == stream.StatusCompleted || j.Status == stream.StatusFailed
}

type JobFilter struct {
	Status string
	Limit  int
}

// Metrics

type ServiceHealth struct {
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	VectorsCount *int     `json:"vectors_count,omitempty"`
	Shards       *int     `json:"shards,omitempty"`
	Models       []string `json:"models,omitempty"`
}

type HealthReport struct {
	Overall   string                   `json:"overall"`
	Services  map[string]ServiceHealth `json:"services"`
	CheckedAt Timestamp                `json:"checked_at"`
}

type RealtimeMetrics struct {
	QueriesLastHour   int       `json:"queries_last_hour"`
	QueriesPerMinute  float64   `json:"queries_per_minute"`
	FailedQueries     int       `json:"failed_queries"`
	ErrorRate         float64   `json:"error_rate"`
	AvgRetrievalScore float64   `json:"avg_retrieval_score"`
	AvgLatencyMs      float64   `json:"avg_latency_ms"`
	CacheHitRate      float64   `json:"cache_hit_rate"`
	Timestamp         Timestamp `json:"timestamp"`
}

type PerformancePoint struct {
	Hour       Timestamp `json:"hour"`
	Total      int       `json:"total"`
	AvgScore   float64   `json:"avg_score"`
	AvgLatency float64   `json:"avg_latency"`
	Failed     int       `json:"failed"`
}

// Analytics

type CoverageRow struct {
	Domain    string `json:"domain"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

type HeatmapCell struct {
	Day    Timestamp `json:"day"`
	Domain string    `json:"domain"`
	Count  int       `json:"count"`
}

type TopQuery struct {
	Query    string  `json:"query"`
	Count    int     `json:"count"`
	AvgScore float64 `json:"avg_score"`
}

type BehaviorPoint struct {
	Hour       Timestamp `json:"hour"`
	Queries    int       `json:"queries"`
	AvgLatency float64   `json:"avg_latency"`
	AvgScore   float64   `json:"avg_score"`
	Failures   int       `json:"failures"`
}

type ExportRequest struct {
	Format string `validate:"required,oneof=csv json"`
	Table  string `validate:"required,oneof=query_logs documents"`
	Days   int    `validate:"min=1,max=365"`
}

// Export is a downloaded file.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Testing

type TestCase struct {
	ID              int      `json:"id"`
	Question        string   `json:"question"`
	ExpectedAnswer  string   `json:"expected_answer"`
	ExpectedSources []string `json:"expected_sources,omitempty"`
	Domain          string   `json:"domain"`
	Tags            []string `json:"tags"`
}

type TestCaseInput struct {
	Question        string   `json:"question" validate:"required"`
	ExpectedAnswer  string   `json:"expected_answer" validate:"required"`
	ExpectedSources []string `json:"expected_sources"`
	Domain          string   `json:"domain,omitempty" validate:"omitempty,oneof=TVA IS IRG TAP TFP Douanes Timbre Autre"`
	Tags            []string `json:"tags"`
}

// RetrievalConfig is the search configuration a test run evaluates.
type RetrievalConfig struct {
	TopK     int     `json:"top_k" validate:"min=1,max=100"`
	MinScore float64 `json:"min_score" validate:"min=0"`
}

type TestRunInput struct {
	Name        string           `json:"name" validate:"required"`
	TestCaseIDs []int            `json:"test_case_ids"`
	ConfigA     RetrievalConfig  `json:"config_a"`
	ConfigB     *RetrievalConfig `json:"config_b,omitempty"`
}

type TestRunStarted struct {
	RunID  int    `json:"run_id"`
	Status string `json:"status"`
}

type RunSummary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

type RunSample struct {
	Score          float64 `json:"score"`
	LatencyMs      int     `json:"latency_ms"`
	ChunksReturned int     `json:"chunks_returned"`
	TopText        string  `json:"top_text"`
	Error          string  `json:"error,omitempty"`
}

type RunResult struct {
	CaseID   int        `json:"test_case_id"`
	Question string     `json:"question"`
	Expected string     `json:"expected"`
	ResultA  RunSample  `json:"result_a"`
	ResultB  *RunSample `json:"result_b"`
	Passed   bool       `json:"passed"`
}

type TestRun struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Status      string           `json:"status"`
	ConfigA     *RetrievalConfig `json:"config_a,omitempty"`
	ConfigB     *RetrievalConfig `json:"config_b,omitempty"`
	Results     []RunResult      `json:"results,omitempty"`
	Summary     *RunSummary      `json:"summary"`
	StartedAt   Timestamp        `json:"started_at"`
	CreatedAt   Timestamp        `json:"created_at"`
	CompletedAt Timestamp        `json:"completed_at"`
}

// Chunks

type Chunk struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// chunkPoint is the raw shape of GET /chunks/{id}.
type chunkPoint struct {
	ID      string                 `json:"id"`
	Payload map[string]interface{} `json:"payload"`
}

func (p chunkPoint) chunk() Chunk {
	c := Chunk{ID: p.ID, Metadata: make(map[string]interface{}, len(p.Payload))}
	for k, v := range p.Payload {
		if k == "text" {
			c.Text, _ = v.(string)
			continue
		}
		c.Metadata[k] = v
	}
	return c
}

type ChunkSearch struct {
	Query  string `validate:"required,min=3"`
	Domain string
	Limit  int `validate:"min=0,max=100"`
}

type ChunkUpdate struct {
	Text     *string                `json:"text,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type ReindexResult struct {
	JobID int `json:"job_id"`
}
