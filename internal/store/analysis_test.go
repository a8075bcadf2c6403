package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func hashPtr(v uint64) *uint64 { return &v }

func TestAnalysisRepository_CreateGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	a := &Analysis{
		ID:         "a-1",
		Source:     "upload.jpg",
		ColorModel: "ycrcb",
		Fingers:    3,
		Found:      true,
		Area:       45210.5,
		Valleys:    2,
		Defects:    5,
		ImageHash:  hashPtr(0xF0F0F0F0F0F0F0F0),
		Width:      640,
		Height:     480,
		Duration:   1500 * time.Microsecond,
	}
	if err := repo.Create(a); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("a-1")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.Fingers != 3 || !got.Found || got.Valleys != 2 || got.Defects != 5 {
		t.Errorf("got %+v", got)
	}
	if got.ColorModel != "ycrcb" || got.Source != "upload.jpg" {
		t.Errorf("model/source = %q/%q", got.ColorModel, got.Source)
	}
	if got.ImageHash == nil || *got.ImageHash != 0xF0F0F0F0F0F0F0F0 {
		t.Errorf("ImageHash = %v, want the stored 64-bit hash", got.ImageHash)
	}
	if got.Duration != 1500*time.Microsecond {
		t.Errorf("Duration = %v", got.Duration)
	}
}

func TestAnalysisRepository_NoHash(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	if err := repo.Create(&Analysis{ID: "a-nohash", ColorModel: "hsv"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	got, err := repo.GetByID("a-nohash")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.ImageHash != nil {
		t.Errorf("ImageHash = %v, want nil", *got.ImageHash)
	}
}

func TestAnalysisRepository_Constraints(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	tests := []struct {
		name string
		a    *Analysis
	}{
		{name: "unknown model", a: &Analysis{ID: "x1", ColorModel: "lab"}},
		{name: "too many fingers", a: &Analysis{ID: "x2", ColorModel: "ycrcb", Fingers: 6}},
		{name: "negative fingers", a: &Analysis{ID: "x3", ColorModel: "ycrcb", Fingers: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(tt.a); err == nil {
				t.Error("expected constraint violation")
			}
		})
	}
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Analyses().GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestAnalysisRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		a := &Analysis{
			ID:         fmt.Sprintf("a-%d", i),
			ColorModel: "ycrcb",
			Fingers:    i,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("List() returned %d, want 5", len(all))
	}
	if all[0].ID != "a-4" {
		t.Errorf("first = %s, want newest a-4", all[0].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d", len(limited))
	}

	n, err := repo.Count()
	if err != nil || n != 5 {
		t.Errorf("Count() = %d, %v; want 5", n, err)
	}
}

func TestAnalysisRepository_ListSimilar(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	const target = uint64(0xFFFF0000FFFF0000)
	entries := []struct {
		id   string
		hash *uint64
	}{
		{id: "same", hash: hashPtr(target)},
		{id: "two-bits", hash: hashPtr(target ^ 0b11)},
		{id: "far", hash: hashPtr(^target)},
		{id: "unhashed", hash: nil},
	}
	for _, e := range entries {
		if err := repo.Create(&Analysis{ID: e.id, ColorModel: "ycrcb", ImageHash: e.hash}); err != nil {
			t.Fatalf("Create(%s) error: %v", e.id, err)
		}
	}

	got, err := repo.ListSimilar(target, 5, 0)
	if err != nil {
		t.Fatalf("ListSimilar() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListSimilar() returned %d, want 2", len(got))
	}
	if got[0].ID != "same" || got[0].Distance != 0 {
		t.Errorf("first = %s (distance %d), want same (0)", got[0].ID, got[0].Distance)
	}
	if got[1].ID != "two-bits" || got[1].Distance != 2 {
		t.Errorf("second = %s (distance %d), want two-bits (2)", got[1].ID, got[1].Distance)
	}

	limited, err := repo.ListSimilar(target, 64, 1)
	if err != nil {
		t.Fatalf("ListSimilar() error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestAnalysisRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Analyses()

	if err := repo.Create(&Analysis{ID: "gone", ColorModel: "hsv"}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := repo.Delete("gone"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := repo.GetByID("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
