package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/fixtures"
	"github.com/ayusman/mudra/internal/hand"
	"github.com/ayusman/mudra/internal/store"
)

func TestAPI_AnalysisWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	analyzer, err := hand.NewAnalyzer(hand.DefaultOptions())
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	srv := New(Config{Store: s, Analyzer: analyzer, Logger: testLog})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	img, err := fixtures.HandPNG(5)
	if err != nil {
		t.Fatal(err)
	}

	// 1. Analyze an upload
	resp, err := client.Post(ts.URL+"/api/analyze?source=upload", "image/png", bytes.NewReader(img))
	if err != nil {
		t.Fatalf("POST /api/analyze error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var created struct {
		ID        string `json:"id"`
		Fingers   int    `json:"fingers"`
		ImageHash string `json:"image_hash"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if created.Fingers != 5 {
		t.Errorf("fingers = %d, want 5", created.Fingers)
	}

	// 2. List analyses
	resp, _ = client.Get(ts.URL + "/api/analyses")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/analyses status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var listed struct {
		Analyses []struct {
			ID      string `json:"id"`
			Fingers int    `json:"fingers"`
		} `json:"analyses"`
		Total int `json:"total"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()

	if len(listed.Analyses) != 1 || listed.Total != 1 {
		t.Fatalf("len(analyses) = %d, total = %d, want 1", len(listed.Analyses), listed.Total)
	}

	// 3. Find it again by perceptual hash
	resp, _ = client.Get(ts.URL + "/api/analyses?similar=" + created.ImageHash + "&distance=0")
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Analyses) != 1 || listed.Analyses[0].ID != created.ID {
		t.Errorf("similar search = %+v", listed.Analyses)
	}

	// 4. Get single analysis
	resp, _ = client.Get(ts.URL + "/api/analyses/" + created.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/analyses/%s status = %d, want %d", created.ID, resp.StatusCode, http.StatusOK)
	}
	resp.Body.Close()

	// 5. Delete analysis
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/analyses/"+created.ID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	// 6. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/analyses/" + created.ID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{Logger: testLog})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
