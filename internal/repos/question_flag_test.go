package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/studyloop/reviewquiz-backend/internal/logger"
	"github.com/studyloop/reviewquiz-backend/internal/types"
)

func testQuestionFlagRepo(t *testing.T) QuestionFlagRepo {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return NewQuestionFlagRepo(testDB(t), log)
}

func TestUpsertTracksLatestWriter(t *testing.T) {
	repo := testQuestionFlagRepo(t)
	ctx := context.Background()

	auto := &types.QuestionFlag{
		ID:         uuid.New(),
		UserID:     7,
		QuestionID: 101,
		Color:      types.FlagColorBlue,
		Source:     types.FlagSourceAuto,
	}
	if err := repo.Upsert(ctx, nil, auto); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A manual re-flag of the same question must take over both color
	// and provenance.
	manual := &types.QuestionFlag{
		ID:         uuid.New(),
		UserID:     7,
		QuestionID: 101,
		Color:      types.FlagColorRed,
		Source:     types.FlagSourceManual,
	}
	if err := repo.Upsert(ctx, nil, manual); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := repo.GetByUser(ctx, nil, 7)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want the single conflicted row", len(rows))
	}
	if rows[0].Color != types.FlagColorRed || rows[0].Source != types.FlagSourceManual {
		t.Fatalf("flag = %s/%s, want red/manual", rows[0].Color, rows[0].Source)
	}
}
