package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/airclick/internal/index"
	"github.com/ayusman/airclick/internal/landmark"
	"github.com/ayusman/airclick/internal/preprocess"
	"github.com/ayusman/airclick/internal/signature"
)

// ErrNotFound is returned when a requested template does not exist.
var ErrNotFound = errors.New("not found")

// blobFrame is one frame's on-disk representation inside landmark_data.
type blobFrame struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Landmarks   [21][3]float64 `json:"landmarks"`
	Handedness  string     `json:"handedness"`
	Confidence  float64    `json:"confidence"`
}

// blobMetadata carries the summary fields the persisted-state layout
// documents alongside the raw frames.
type blobMetadata struct {
	TotalFrames int     `json:"total_frames"`
	DurationS   float64 `json:"duration_s"`
}

// landmarkBlob is the full JSON document stored in landmark_data: raw
// frames plus their metadata, never preprocessed features.
type landmarkBlob struct {
	Frames   []blobFrame  `json:"frames"`
	Metadata blobMetadata `json:"metadata"`
}

func encodeFrames(seq landmark.FrameSequence) ([]byte, error) {
	blob := landmarkBlob{
		Frames: make([]blobFrame, len(seq)),
		Metadata: blobMetadata{
			TotalFrames: len(seq),
			DurationS:   durationSeconds(seq),
		},
	}
	for i, f := range seq {
		var lm [21][3]float64
		for j, p := range f.Landmarks {
			lm[j] = [3]float64{p.X, p.Y, p.Z}
		}
		blob.Frames[i] = blobFrame{
			TimestampMs: f.TimestampMs,
			Landmarks:   lm,
			Handedness:  string(f.Handedness),
			Confidence:  f.Confidence,
		}
	}
	return json.Marshal(blob)
}

func durationSeconds(seq landmark.FrameSequence) float64 {
	if len(seq) < 2 {
		return 0
	}
	return float64(seq[len(seq)-1].TimestampMs-seq[0].TimestampMs) / 1000.0
}

func decodeFrames(data []byte) (landmark.FrameSequence, error) {
	var blob landmarkBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, err
	}
	seq := make(landmark.FrameSequence, len(blob.Frames))
	for i, bf := range blob.Frames {
		var lm [landmark.NumLandmarks]landmark.Point
		for j, coords := range bf.Landmarks {
			lm[j] = landmark.Point{X: coords[0], Y: coords[1], Z: coords[2]}
		}
		seq[i] = landmark.Frame{
			TimestampMs: bf.TimestampMs,
			Landmarks:   lm,
			Handedness:  landmark.Handedness(bf.Handedness),
			Confidence:  bf.Confidence,
		}
	}
	return seq, nil
}

// TemplateRecord is a gesture template row as stored, with its raw frames
// already decoded.
type TemplateRecord struct {
	ID                    string
	UserID                string
	AppContext            string
	Name                  string
	Frames                landmark.FrameSequence
	AdaptiveThreshold     *float64
	MatchCount            int
	AccumulatedSimilarity float64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TemplateRepository provides CRUD operations over gesture_templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

// Create inserts a new template, raw frames only, per the invariant that
// templates persist unprocessed landmark data rather than derived
// features. A blank ID is replaced with a fresh UUID.
func (r *TemplateRepository) Create(rec *TemplateRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	data, err := encodeFrames(rec.Frames)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now

	_, err = r.db.Exec(
		`INSERT INTO gesture_templates
			(id, user_id, app_context, name, landmark_data, adaptive_threshold, match_count, accumulated_similarity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		rec.ID, rec.UserID, rec.AppContext, rec.Name, string(data), rec.AdaptiveThreshold, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// GetByID retrieves a single template by ID, frames decoded.
func (r *TemplateRepository) GetByID(id string) (*TemplateRecord, error) {
	row := r.db.QueryRow(
		`SELECT id, user_id, app_context, name, landmark_data, adaptive_threshold, match_count, accumulated_similarity, created_at, updated_at
		 FROM gesture_templates WHERE id = ?`, id,
	)
	return scanTemplate(row)
}

// Delete removes a template by ID.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM gesture_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAdaptiveThreshold sets or clears (nil) a template's per-template
// acceptance threshold.
func (r *TemplateRepository) SetAdaptiveThreshold(id string, threshold *float64) error {
	result, err := r.db.Exec(
		`UPDATE gesture_templates SET adaptive_threshold = ?, updated_at = ? WHERE id = ?`,
		threshold, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUserApp lists every template row for a user/app-context pair,
// frames decoded but features not yet derived.
func (r *TemplateRepository) ListByUserApp(userID, appContext string) ([]*TemplateRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, app_context, name, landmark_data, adaptive_threshold, match_count, accumulated_similarity, created_at, updated_at
		 FROM gesture_templates WHERE user_id = ? AND app_context = ?`,
		userID, appContext,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TemplateRecord
	for rows.Next() {
		rec, err := scanTemplateRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTemplate(row scannable) (*TemplateRecord, error) {
	rec, err := scanTemplateRows(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanTemplateRows(row scannable) (*TemplateRecord, error) {
	var rec TemplateRecord
	var landmarkData string
	var adaptiveThreshold sql.NullFloat64

	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.AppContext, &rec.Name, &landmarkData,
		&adaptiveThreshold, &rec.MatchCount, &rec.AccumulatedSimilarity,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	frames, err := decodeFrames([]byte(landmarkData))
	if err != nil {
		return nil, err
	}
	rec.Frames = frames
	if adaptiveThreshold.Valid {
		v := adaptiveThreshold.Float64
		rec.AdaptiveThreshold = &v
	}
	return &rec, nil
}

// ListTemplates implements session.TemplateProvider: it loads every raw
// template row for userID/appContext and derives the matcher-ready
// features and signature for each, skipping (and logging) any row whose
// frames fail the same preprocessing gate a live gesture attempt would.
func (s *Store) ListTemplates(userID, appContext string) ([]*index.Template, error) {
	records, err := s.Templates().ListByUserApp(userID, appContext)
	if err != nil {
		return nil, err
	}

	out := make([]*index.Template, 0, len(records))
	for _, rec := range records {
		features, err := preprocess.Process(rec.Frames)
		if err != nil {
			log.Printf("store: template %s failed preprocessing, skipped: %v", rec.ID, err)
			continue
		}
		sig, err := signature.Extract(rec.Frames)
		if err != nil {
			log.Printf("store: template %s failed signature extraction, skipped: %v", rec.ID, err)
			continue
		}
		out = append(out, &index.Template{
			ID:                rec.ID,
			Name:              rec.Name,
			Frames:            rec.Frames,
			Features:          features,
			Signature:         sig,
			AdaptiveThreshold: rec.AdaptiveThreshold,
		})
	}
	return out, nil
}

// UpdateTemplateStats implements session.TemplateProvider: it persists the
// running match count and accumulated similarity the session already
// computed, logging rather than failing the caller on a write error since
// this bookkeeping is best-effort.
func (s *Store) UpdateTemplateStats(templateID string, similarity float64, matchCount int, accumulatedSimilarity float64) {
	_, err := s.db.Exec(
		`UPDATE gesture_templates SET match_count = ?, accumulated_similarity = ?, updated_at = ? WHERE id = ?`,
		matchCount, accumulatedSimilarity, time.Now(), templateID,
	)
	if err != nil {
		log.Printf("store: failed to update stats for template %s: %v", templateID, err)
	}
}
