package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

const minimalCodebook = "name: test\nnodes: []\n"

func TestInsertJob(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertJob("climate", minimalCodebook)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero job ID")
	}
}

func TestInsertDuplicateJob(t *testing.T) {
	db := openTestDB(t)
	_, _ = db.InsertJob("climate", minimalCodebook)
	id, err := db.InsertJob("climate", minimalCodebook)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0 {
		t.Error("expected 0 for duplicate job")
	}
}

func TestGetJob(t *testing.T) {
	db := openTestDB(t)
	db.InsertJob("climate", minimalCodebook)

	job, err := db.GetJob("climate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job == nil {
		t.Fatal("expected job")
	}
	if job.CodebookYAML != minimalCodebook {
		t.Errorf("codebook = %q", job.CodebookYAML)
	}

	missing, err := db.GetJob("no-such-job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown job")
	}
}

func TestUpdateJobCodebook(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.InsertJob("climate", minimalCodebook)

	updated := "name: test2\nnodes: []\n"
	if err := db.UpdateJobCodebook(id, updated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	job, _ := db.GetJobByID(id)
	if job.CodebookYAML != updated {
		t.Error("expected updated codebook")
	}
}

func TestUnitLifecycle(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)

	u1, err := db.InsertUnit(jobID, "u1", ptr("https://a.com"), `[{"name":"text","value":"A"}]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u1 == 0 {
		t.Error("expected non-zero unit ID")
	}
	u2, _ := db.InsertUnit(jobID, "u2", ptr("https://b.com"), `[{"name":"text","value":"B"}]`)
	if u2 == 0 {
		t.Error("expected non-zero unit ID")
	}

	units, err := db.GetUnitsForJob(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Position != 0 || units[1].Position != 1 {
		t.Errorf("positions = %d, %d", units[0].Position, units[1].Position)
	}

	unit, _ := db.GetUnitAt(jobID, 1)
	if unit == nil || unit.ExternalID != "u2" {
		t.Errorf("unit at position 1 = %+v", unit)
	}

	n, _ := db.CountUnits(jobID)
	if n != 2 {
		t.Errorf("expected 2 units, got %d", n)
	}
}

func TestInsertDuplicateUnit(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)
	db.InsertUnit(jobID, "u1", ptr("https://a.com"), "[]")

	byID, err := db.InsertUnit(jobID, "u1", ptr("https://other.com"), "[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID != 0 {
		t.Error("expected 0 for duplicate external id")
	}

	byURL, err := db.InsertUnit(jobID, "u9", ptr("https://a.com"), "[]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byURL != 0 {
		t.Error("expected 0 for duplicate URL")
	}
}

func TestUnitsNeedingFetch(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)
	id, _ := db.InsertUnit(jobID, "u1", ptr("https://a.com"), "[]")
	db.InsertUnit(jobID, "u2", nil, `[{"name":"text","value":"inline"}]`)

	needing, err := db.GetUnitsNeedingFetch(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(needing) != 1 || needing[0].ExternalID != "u1" {
		t.Fatalf("needing fetch = %+v", needing)
	}

	if err := db.UpdateUnitFields(id, `[{"name":"text","value":"fetched"}]`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	needing, _ = db.GetUnitsNeedingFetch(jobID)
	if len(needing) != 0 {
		t.Errorf("expected 0 units needing fetch, got %d", len(needing))
	}

	unit, _ := db.GetUnitAt(jobID, 0)
	if !unit.BodyFetched {
		t.Error("expected body_fetched to be true")
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)

	if err := db.InsertSession("tok-1", jobID, ptr("alice")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err := db.GetSession("tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil || s.Coder == nil || *s.Coder != "alice" {
		t.Fatalf("session = %+v", s)
	}
	if s.ProgressJSON != nil {
		t.Error("expected no progress on a fresh session")
	}

	if err := db.UpdateSessionProgress("tok-1", `{"phase":1}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ = db.GetSession("tok-1")
	if s.ProgressJSON == nil || *s.ProgressJSON != `{"phase":1}` {
		t.Error("expected saved progress")
	}

	sessions, _ := db.GetSessionsForJob(jobID)
	if len(sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(sessions))
	}
}

func TestAnnotationLifecycle(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)
	db.InsertSession("tok-1", jobID, nil)

	row := AnnotationRow{
		ID:           "ann-1",
		SessionToken: "tok-1",
		JobID:        jobID,
		UnitID:       "u1",
		Variable:     "topic",
		BodyJSON:     `{"code":"climate"}`,
		Status:       "done",
	}
	if err := db.UpsertAnnotation(row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Upserting the same id replaces, not duplicates.
	row.BodyJSON = `{"code":"economy"}`
	if err := db.UpsertAnnotation(row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	anns, err := db.GetAnnotationsForUnit("tok-1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(anns) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(anns))
	}
	if anns[0].BodyJSON != `{"code":"economy"}` {
		t.Errorf("body = %q", anns[0].BodyJSON)
	}

	if err := db.DeleteAnnotation("ann-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.DeleteAnnotation("never-existed"); err != nil {
		t.Fatalf("deleting unknown id should not error: %v", err)
	}
	anns, _ = db.GetAnnotationsForSession("tok-1")
	if len(anns) != 0 {
		t.Errorf("expected 0 annotations after delete, got %d", len(anns))
	}
}

func TestGetAnnotationsForJob(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)
	db.InsertSession("tok-1", jobID, nil)
	db.InsertSession("tok-2", jobID, nil)

	db.UpsertAnnotation(AnnotationRow{ID: "a1", SessionToken: "tok-2", JobID: jobID, UnitID: "u1", Variable: "topic", BodyJSON: "{}", Status: "done"})
	db.UpsertAnnotation(AnnotationRow{ID: "a2", SessionToken: "tok-1", JobID: jobID, UnitID: "u1", Variable: "topic", BodyJSON: "{}", Status: "done"})

	anns, err := db.GetAnnotationsForJob(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(anns) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(anns))
	}
	if anns[0].SessionToken != "tok-1" {
		t.Error("expected annotations grouped by session token")
	}
}

func TestDeleteJob(t *testing.T) {
	db := openTestDB(t)
	jobID, _ := db.InsertJob("climate", minimalCodebook)
	db.InsertUnit(jobID, "u1", nil, "[]")
	db.InsertSession("tok-1", jobID, nil)
	db.UpsertAnnotation(AnnotationRow{ID: "a1", SessionToken: "tok-1", JobID: jobID, UnitID: "u1", Variable: "topic", BodyJSON: "{}", Status: "done"})

	if err := db.DeleteJob(jobID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, _ := db.GetJobByID(jobID)
	if job != nil {
		t.Error("expected job to be gone")
	}
	units, _ := db.GetUnitsForJob(jobID)
	if len(units) != 0 {
		t.Error("expected units to be gone")
	}
	anns, _ := db.GetAnnotationsForJob(jobID)
	if len(anns) != 0 {
		t.Error("expected annotations to be gone")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Jobs != 0 {
		t.Errorf("expected 0 jobs, got %d", stats.Jobs)
	}

	jobID, _ := db.InsertJob("climate", minimalCodebook)
	db.InsertUnit(jobID, "u1", nil, "[]")
	db.InsertSession("tok-1", jobID, nil)

	stats, _ = db.GetStats()
	if stats.Jobs != 1 {
		t.Errorf("expected 1 job, got %d", stats.Jobs)
	}
	if stats.Units != 1 {
		t.Errorf("expected 1 unit, got %d", stats.Units)
	}
	if stats.Sessions != 1 {
		t.Errorf("expected 1 session, got %d", stats.Sessions)
	}
}
