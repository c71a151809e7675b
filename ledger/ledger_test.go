package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"promo-pipelines/types"
)

func init() {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func openMemory(t *testing.T, store *MemoryStore) *Ledger {
	t.Helper()
	l, err := Open(store)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return l.WithClock(fixedClock())
}

func TestLedger_Transitions(t *testing.T) {
	store := &MemoryStore{}
	l := openMemory(t, store)

	files := []FileRef{
		{Name: "251101-251205_상품_SSG_2.xlsx", Kind: types.KindProduct},
		{Name: "251101-251205_상품_쿠팡_2.xlsx", Kind: types.KindProduct},
	}
	if err := l.BeginBatch(files); err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	for _, f := range files {
		e, ok := l.Entry(f.Name)
		if !ok || e.Status != StatusPending || e.Attempts != 0 {
			t.Errorf("after BeginBatch %s = %+v, want pending with 0 attempts", f.Name, e)
		}
	}

	e, err := l.RecordFailure(files[0].Name, types.KindProduct, "")
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if e.Status != StatusFailed || e.Attempts != 1 || e.LastError != "submission failed" {
		t.Errorf("failed entry = %+v", e)
	}
	if e.LastAttempt != "2025-11-01 09:30:00" {
		t.Errorf("LastAttempt = %q", e.LastAttempt)
	}

	e, _ = l.RecordSuccess(files[1].Name, types.KindProduct)
	if e.Status != StatusSuccess || e.Attempts != 1 || e.LastError != "" || e.UploadedAt == "" {
		t.Errorf("success entry = %+v", e)
	}

	if l.AllSucceeded(types.KindProduct) {
		t.Error("AllSucceeded() = true with a failed entry")
	}

	// Resume cycle: attempts carry over, error clears on success
	if err := l.BeginBatch(files[:1]); err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	e, _ = l.Entry(files[0].Name)
	if e.Status != StatusPending || e.Attempts != 1 {
		t.Errorf("re-begun entry = %+v, want pending with attempts kept", e)
	}
	e, _ = l.RecordSuccess(files[0].Name, types.KindProduct)
	if e.Attempts != 2 || e.LastError != "" {
		t.Errorf("resumed entry = %+v, want 2 attempts and no error", e)
	}
	if !l.AllSucceeded("") {
		t.Error("AllSucceeded() = false after all succeeded")
	}

	removed, err := l.Finalize()
	if err != nil || !removed {
		t.Fatalf("Finalize() = %v, %v; want true, nil", removed, err)
	}
	if store.Exists() {
		t.Error("ledger document should be removed after full success")
	}
}

func TestLedger_WriteThrough(t *testing.T) {
	store := &MemoryStore{}
	l := openMemory(t, store)

	_ = l.BeginBatch([]FileRef{{Name: "a.xlsx", Kind: types.KindBrand}, {Name: "b.xlsx", Kind: types.KindBrand}})
	_, _ = l.RecordFailure("a.xlsx", types.KindBrand, "alert: 엑셀 양식 오류")

	if store.Saves != 2 {
		t.Errorf("Saves = %d, want 2 (one per update)", store.Saves)
	}

	// A fresh process sees exactly what was persisted
	reopened := openMemory(t, store)
	e, ok := reopened.Entry("a.xlsx")
	if !ok || e.Status != StatusFailed || e.LastError != "alert: 엑셀 양식 오류" || e.Kind != types.KindBrand {
		t.Errorf("reopened a.xlsx = %+v", e)
	}
	e, _ = reopened.Entry("b.xlsx")
	if e.Status != StatusPending {
		t.Errorf("reopened b.xlsx = %+v, want pending", e)
	}
}

func TestLedger_PersistFailure(t *testing.T) {
	store := &MemoryStore{}
	l := openMemory(t, store)
	store.SaveErr = errors.New("disk full")

	e, err := l.RecordSuccess("a.xlsx", types.KindProduct)
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("RecordSuccess() error = %v, want ErrNotPersisted", err)
	}
	if e.Status != StatusSuccess || e.Attempts != 1 {
		t.Errorf("in-memory entry = %+v, want success", e)
	}
	if store.Exists() {
		t.Error("nothing should have been persisted")
	}
}

func TestLedger_FinalizeKeepsFailures(t *testing.T) {
	store := &MemoryStore{}
	l := openMemory(t, store)
	_, _ = l.RecordFailure("a.xlsx", types.KindProduct, "timeout")

	removed, err := l.Finalize()
	if err != nil || removed {
		t.Fatalf("Finalize() = %v, %v; want false, nil", removed, err)
	}
	if !store.Exists() {
		t.Error("ledger with failures must be kept")
	}
}

func TestLedger_Names(t *testing.T) {
	l := openMemory(t, &MemoryStore{})
	_ = l.BeginBatch([]FileRef{
		{Name: "b.xlsx", Kind: types.KindProduct},
		{Name: "a.xlsx", Kind: types.KindProduct},
		{Name: "c.xlsx", Kind: types.KindBrand},
	})

	got := l.Names(types.KindProduct)
	if len(got) != 2 || got[0] != "a.xlsx" || got[1] != "b.xlsx" {
		t.Errorf("Names(product) = %v", got)
	}
	if len(l.Names("")) != 3 {
		t.Errorf("Names(\"\") = %v", l.Names(""))
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	if _, err := store.Load(); !errors.Is(err, ErrNoLedger) {
		t.Fatalf("Load() on empty dir error = %v, want ErrNoLedger", err)
	}

	l, err := Open(store)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.WithClock(fixedClock())
	_, _ = l.RecordFailure("251101-251205_브랜드_SSG_1.xlsx", types.KindBrand, "boom")

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read ledger file: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("ledger is not JSON: %v", err)
	}
	if doc["last_updated"] != "2025-11-01 09:30:00" {
		t.Errorf("last_updated = %v", doc["last_updated"])
	}
	files := doc["files"].(map[string]any)
	entry := files["251101-251205_브랜드_SSG_1.xlsx"].(map[string]any)
	if entry["status"] != "failed" || entry["type"] != "brand" || entry["last_error"] != "boom" {
		t.Errorf("entry = %v", entry)
	}
	if entry["attempts"].(float64) != 1 {
		t.Errorf("attempts = %v, want 1", entry["attempts"])
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(NewFileStore(dir))
	if !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("Open() error = %v, want ErrCorruptLedger", err)
	}
	if _, err := CheckResume(NewFileStore(dir), dir, nil); !errors.Is(err, ErrCorruptLedger) {
		t.Errorf("CheckResume() error = %v, want ErrCorruptLedger", err)
	}
}

func TestLedger_RecordAttempt(t *testing.T) {
	l := openMemory(t, &MemoryStore{})

	e, err := l.RecordAttempt("a.xlsx", types.KindBrand, errors.New("엑셀 양식 오류"))
	if err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
	if e.Status != StatusFailed || e.LastError != "엑셀 양식 오류" || e.Attempts != 1 {
		t.Errorf("failed attempt = %+v", e)
	}

	e, err = l.RecordAttempt("a.xlsx", types.KindBrand, nil)
	if err != nil {
		t.Fatalf("RecordAttempt() error = %v", err)
	}
	if e.Status != StatusSuccess || e.LastError != "" || e.Attempts != 2 || e.UploadedAt == "" {
		t.Errorf("successful attempt = %+v", e)
	}
}

func TestLedger_Sheet(t *testing.T) {
	l := openMemory(t, &MemoryStore{})

	err := l.BeginBatch([]FileRef{
		{Name: "b.xlsx", Kind: types.KindProduct, Sheet: "11월 상품"},
		{Name: "c.xlsx", Kind: types.KindBrand},
	})
	if err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}
	// a later batch without a sheet keeps the recorded one
	if err := l.BeginBatch([]FileRef{{Name: "b.xlsx", Kind: types.KindProduct}}); err != nil {
		t.Fatalf("BeginBatch() error = %v", err)
	}

	if got := l.Sheet(types.KindProduct); got != "11월 상품" {
		t.Errorf("Sheet(product) = %q", got)
	}
	if got := l.Sheet(types.KindBrand); got != "" {
		t.Errorf("Sheet(brand) = %q, want empty", got)
	}
}
