package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iulspop/learn-chinese/internal/cards"
)

// CardRepository persists enrichment records in PostgreSQL, one row per
// simplified form.
type CardRepository struct {
	db *sql.DB
}

// NewCardRepository creates a new repository.
func NewCardRepository(db *sql.DB) *CardRepository {
	return &CardRepository{db: db}
}

const recordColumns = `
	simplified, pinyin, meaning, part_of_speech, audio,
	sentence, sentence_pinyin, sentence_sandhi, sentence_meaning,
	sentence_audio, sentence_image, source
`

// GetAll returns every record keyed by simplified form.
func (r *CardRepository) GetAll(ctx context.Context) (map[string]cards.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM cards`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}
	defer rows.Close()

	result := make(map[string]cards.Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result[rec.Simplified] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

// Get fetches a single record.
func (r *CardRepository) Get(ctx context.Context, simplified string) (cards.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM cards WHERE simplified = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, simplified))
	if err != nil {
		if err == sql.ErrNoRows {
			return cards.Record{}, cards.ErrNotFound
		}
		return cards.Record{}, err
	}
	return rec, nil
}

// Upsert replaces the whole record for its key. Partial field updates are
// never issued, so a committed record can never hold a mix of two runs.
func (r *CardRepository) Upsert(ctx context.Context, rec cards.Record) error {
	const query = `
		INSERT INTO cards (
			simplified, pinyin, meaning, part_of_speech, audio,
			sentence, sentence_pinyin, sentence_sandhi, sentence_meaning,
			sentence_audio, sentence_image, source, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (simplified) DO UPDATE SET
			pinyin = EXCLUDED.pinyin,
			meaning = EXCLUDED.meaning,
			part_of_speech = EXCLUDED.part_of_speech,
			audio = EXCLUDED.audio,
			sentence = EXCLUDED.sentence,
			sentence_pinyin = EXCLUDED.sentence_pinyin,
			sentence_sandhi = EXCLUDED.sentence_sandhi,
			sentence_meaning = EXCLUDED.sentence_meaning,
			sentence_audio = EXCLUDED.sentence_audio,
			sentence_image = EXCLUDED.sentence_image,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.Simplified,
		rec.Pinyin,
		rec.Meaning,
		rec.PartOfSpeech,
		rec.Audio,
		rec.Sentence,
		rec.SentencePinyin,
		rec.SentenceSandhi,
		rec.SentenceMeaning,
		rec.SentenceAudio,
		rec.SentenceImage,
		string(rec.Source),
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("upsert card %s: %w", rec.Simplified, err)
	}
	return nil
}

// Delete removes the record for simplified. Deleting an absent key is a
// no-op.
func (r *CardRepository) Delete(ctx context.Context, simplified string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE simplified = $1`, simplified); err != nil {
		return fmt.Errorf("delete card %s: %w", simplified, err)
	}
	return nil
}

// MissingImages returns pipeline-generated records with no illustration,
// in key order.
func (r *CardRepository) MissingImages(ctx context.Context) ([]cards.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM cards
		WHERE source = $1 AND sentence_image = ''
		ORDER BY simplified`

	rows, err := r.db.QueryContext(ctx, query, string(cards.SourceGenerated))
	if err != nil {
		return nil, fmt.Errorf("select cards without images: %w", err)
	}
	defer rows.Close()

	var result []cards.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (cards.Record, error) {
	var rec cards.Record
	var source string
	if err := row.Scan(
		&rec.Simplified,
		&rec.Pinyin,
		&rec.Meaning,
		&rec.PartOfSpeech,
		&rec.Audio,
		&rec.Sentence,
		&rec.SentencePinyin,
		&rec.SentenceSandhi,
		&rec.SentenceMeaning,
		&rec.SentenceAudio,
		&rec.SentenceImage,
		&source,
	); err != nil {
		if err == sql.ErrNoRows {
			return cards.Record{}, err
		}
		return cards.Record{}, fmt.Errorf("scan card: %w", err)
	}
	rec.Source = cards.Provenance(source)
	return rec, nil
}
