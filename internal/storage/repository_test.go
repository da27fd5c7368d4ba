package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iulspop/learn-chinese/internal/cards"
)

var recordRows = []string{
	"simplified", "pinyin", "meaning", "part_of_speech", "audio",
	"sentence", "sentence_pinyin", "sentence_sandhi", "sentence_meaning",
	"sentence_audio", "sentence_image", "source",
}

func TestCardRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCardRepository(db)
	rec := cards.Record{
		Simplified:      "爱",
		Pinyin:          "ài",
		Meaning:         "to love",
		PartOfSpeech:    "verb",
		Audio:           "gen_aa.mp3",
		Sentence:        "我爱你。",
		SentencePinyin:  "Wǒ ài nǐ 。",
		SentenceMeaning: "I love you.",
		SentenceAudio:   "gen_bb.mp3",
		SentenceImage:   "gen_cc.jpg",
		Source:          cards.SourceGenerated,
	}

	mock.ExpectExec("INSERT INTO cards").
		WithArgs(
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
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepositoryGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCardRepository(db)
	rows := sqlmock.NewRows(recordRows).
		AddRow("爱", "ài", "to love", "verb", "gen_aa.mp3",
			"我爱你。", "Wǒ ài nǐ 。", "", "I love you.",
			"gen_bb.mp3", "gen_cc.jpg", "generated").
		AddRow("国", "guó", "country", "noun", "gen_dd.mp3",
			"中国很大。", "Zhōng guó hěn dà 。", "", "China is big.",
			"gen_ee.mp3", "", "user")

	mock.ExpectQuery("SELECT (.+) FROM cards").WillReturnRows(rows)

	records, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, cards.SourceGenerated, records["爱"].Source)
	require.Equal(t, cards.SourceUser, records["国"].Source)
	require.Empty(t, records["国"].SentenceImage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCardRepository(db)
	mock.ExpectQuery("SELECT (.+) FROM cards WHERE simplified").
		WithArgs("爱").
		WillReturnRows(sqlmock.NewRows(recordRows))

	_, err = repo.Get(context.Background(), "爱")
	require.ErrorIs(t, err, cards.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCardRepository(db)
	mock.ExpectExec("DELETE FROM cards").
		WithArgs("爱").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "爱"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepositoryMissingImages(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewCardRepository(db)
	rows := sqlmock.NewRows(recordRows).
		AddRow("爱", "ài", "to love", "verb", "gen_aa.mp3",
			"我爱你。", "Wǒ ài nǐ 。", "", "I love you.",
			"gen_bb.mp3", "", "generated")

	mock.ExpectQuery("SELECT (.+) FROM cards").
		WithArgs("generated").
		WillReturnRows(rows)

	records, err := repo.MissingImages(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "爱", records[0].Simplified)
	require.NoError(t, mock.ExpectationsWereMet())
}
