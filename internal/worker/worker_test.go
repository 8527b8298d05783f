package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/hoa-backend/internal/model"
)

func TestBuildResultColumns(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)
	batch := []*model.Review{
		{AttemptID: uuid.New(), SubmitReason: model.SubmitReasonTimeout, Correct: 3, Total: 5, SubmittedAt: at},
		{AttemptID: uuid.New(), SubmitReason: model.SubmitReasonIntegrity, IntegrityFlag: true, Correct: 1, Total: 5, SubmittedAt: at},
	}

	cols, err := buildResultColumns(batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols.ids) != 2 || cols.ids[1] != batch[1].AttemptID {
		t.Fatalf("ids = %v", cols.ids)
	}
	if cols.reasons[0] != "TIMEOUT" || !cols.flags[1] || cols.correct[0] != 3 || cols.total[1] != 5 {
		t.Fatalf("columns = %+v", cols)
	}

	var decoded model.Review
	if err := json.Unmarshal(cols.reviews[1], &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.AttemptID != batch[1].AttemptID || !decoded.IntegrityFlag {
		t.Fatalf("review column = %+v", decoded)
	}
}

func TestOptionOrderColumns(t *testing.T) {
	id := uuid.New()
	ids, orders := optionOrderColumns([]*model.OptionOrderSaved{
		{AttemptID: id, Order: [][]string{{"b", "a"}, nil}},
	})
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("ids = %v", ids)
	}
	if string(orders[0]) != `[["b","a"],null]` {
		t.Fatalf("order = %s", orders[0])
	}
}

func TestIntegrityRows(t *testing.T) {
	e := &model.IntegrityEvent{
		AttemptID: uuid.New(),
		StudentID: 7,
		Hidden:    true,
		Kind:      model.VisibilityTabSwitch,
		Triggered: true,
	}
	rows := integrityRows([]*model.IntegrityEvent{e})
	if len(rows) != 1 || len(rows[0]) != len(integrityColumns) {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][4] != "tab_switch" || rows[0][5] != true {
		t.Fatalf("row = %v", rows[0])
	}
}
