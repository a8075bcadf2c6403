package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/fixtures"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/store"
)

func handPNG(t *testing.T, n int) []byte {
	t.Helper()
	data, err := fixtures.HandPNG(n)
	if err != nil {
		t.Fatalf("HandPNG(%d) error: %v", n, err)
	}
	return data
}

func decodeAnalyze(t *testing.T, rec *httptest.ResponseRecorder) analyzeResponse {
	t.Helper()
	var resp analyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestAnalyzeHandler_MethodNotAllowed(t *testing.T) {
	h := NewAnalyzeHandler(newTestAnalyzer(t), nil, nil, testLog)

	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestAnalyzeHandler_RawBody(t *testing.T) {
	s := newTestStore(t)
	h := NewAnalyzeHandler(newTestAnalyzer(t), s, nil, testLog)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze?source=cam0", bytes.NewReader(handPNG(t, 5)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAnalyze(t, rec)

	if !resp.Found || resp.Fingers != 5 {
		t.Errorf("found=%v fingers=%d, want a hand with 5 fingers", resp.Found, resp.Fingers)
	}
	if resp.Model != "ycrcb" {
		t.Errorf("model = %q, want ycrcb", resp.Model)
	}
	if resp.Width != fixtures.Width || resp.Height != fixtures.Height {
		t.Errorf("size = %dx%d", resp.Width, resp.Height)
	}
	if len(resp.Valleys) != 4 {
		t.Errorf("valleys = %d, want 4", len(resp.Valleys))
	}
	if len(resp.Hull) < 4 {
		t.Errorf("hull has %d points", len(resp.Hull))
	}
	if resp.ImageHash == "" {
		t.Error("expected a perceptual hash")
	}
	if resp.ID == "" {
		t.Fatal("expected the analysis to be recorded")
	}

	stored, err := s.Analyses().GetByID(resp.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if stored.Source != "cam0" || stored.Fingers != 5 || stored.ImageHash == nil {
		t.Errorf("stored = %+v", stored)
	}
}

func TestAnalyzeHandler_ModelAndNoRecord(t *testing.T) {
	s := newTestStore(t)
	ctl := &fakeController{model: hand.ModelYCrCb}
	h := NewAnalyzeHandler(newTestAnalyzer(t), s, ctl.ColorModel, testLog)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze?model=hsv&record=false", bytes.NewReader(handPNG(t, 5)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAnalyze(t, rec)
	if resp.Model != "hsv" || resp.Fingers != 5 {
		t.Errorf("model=%q fingers=%d", resp.Model, resp.Fingers)
	}
	if resp.ID != "" {
		t.Errorf("record=false should not store, got id %q", resp.ID)
	}
	if n, _ := s.Analyses().Count(); n != 0 {
		t.Errorf("store holds %d analyses, want 0", n)
	}
}

func TestAnalyzeHandler_DefaultModelFromController(t *testing.T) {
	ctl := &fakeController{model: hand.ModelHSV}
	h := NewAnalyzeHandler(newTestAnalyzer(t), nil, ctl.ColorModel, testLog)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(handPNG(t, 0)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decodeAnalyze(t, rec)
	if resp.Model != "hsv" {
		t.Errorf("model = %q, want hsv", resp.Model)
	}
	if !resp.Found || resp.Fingers > 1 {
		t.Errorf("fist: found=%v fingers=%d", resp.Found, resp.Fingers)
	}
}

func TestAnalyzeHandler_Multipart(t *testing.T) {
	s := newTestStore(t)
	h := NewAnalyzeHandler(newTestAnalyzer(t), s, nil, testLog)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "hand.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(handPNG(t, 5))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAnalyze(t, rec)
	stored, err := s.Analyses().GetByID(resp.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if stored.Source != "hand.png" {
		t.Errorf("source = %q, want the upload file name", stored.Source)
	}
}

func TestAnalyzeHandler_JPEGOverlay(t *testing.T) {
	h := NewAnalyzeHandler(newTestAnalyzer(t), newTestStore(t), nil, testLog)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze?format=jpeg", bytes.NewReader(handPNG(t, 5)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := rec.Header().Get("X-Finger-Count"); got != "5" {
		t.Errorf("X-Finger-Count = %q, want 5", got)
	}
	if rec.Header().Get("X-Analysis-Id") == "" {
		t.Error("expected X-Analysis-Id")
	}

	img, err := gocv.IMDecode(rec.Body.Bytes(), gocv.IMReadColor)
	if err != nil {
		t.Fatalf("overlay does not decode: %v", err)
	}
	defer img.Close()
	if img.Cols() != fixtures.Width || img.Rows() != fixtures.Height {
		t.Errorf("overlay size = %dx%d", img.Cols(), img.Rows())
	}
}

func TestAnalyzeHandler_NoHand(t *testing.T) {
	h := NewAnalyzeHandler(newTestAnalyzer(t), nil, nil, testLog)

	blank := fixtures.Blank()
	defer blank.Close()
	data, err := fixtures.EncodePNG(blank)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	resp := decodeAnalyze(t, rec)
	if resp.Found || resp.Fingers != 0 {
		t.Errorf("found=%v fingers=%d, want nothing", resp.Found, resp.Fingers)
	}
	if len(resp.Valleys) != 0 || len(resp.Hull) != 0 {
		t.Errorf("valleys=%d hull=%d, want empty", len(resp.Valleys), len(resp.Hull))
	}
}

func TestAnalyzeHandler_BadRequests(t *testing.T) {
	png := handPNG(t, 3)
	tests := []struct {
		name   string
		query  string
		body   []byte
		status int
	}{
		{"unknown model", "?model=rgb", png, http.StatusBadRequest},
		{"unknown format", "?format=gif", png, http.StatusBadRequest},
		{"empty body", "", nil, http.StatusBadRequest},
		{"not an image", "", []byte("hello world"), http.StatusBadRequest},
		{"too large", "", make([]byte, MaxUploadBytes+1), http.StatusRequestEntityTooLarge},
	}

	h := NewAnalyzeHandler(newTestAnalyzer(t), nil, nil, testLog)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze"+tt.query, bytes.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected an error body, got %v", err)
			}
		})
	}
}

func TestAnalyzeHandler_SimilarImagesShareHash(t *testing.T) {
	s := newTestStore(t)
	h := NewAnalyzeHandler(newTestAnalyzer(t), s, nil, testLog)

	var ids []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(handPNG(t, 5)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		ids = append(ids, decodeAnalyze(t, rec).ID)
	}

	first, err := s.Analyses().GetByID(ids[0])
	if err != nil {
		t.Fatal(err)
	}
	similar, err := s.Analyses().ListSimilar(*first.ImageHash, 0, store.DefaultListLimit)
	if err != nil {
		t.Fatalf("ListSimilar() error: %v", err)
	}
	if len(similar) != 2 {
		t.Errorf("ListSimilar() returned %d, want both uploads", len(similar))
	}
}
