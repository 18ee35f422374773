package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"courier/internal/api"
	"courier/internal/queue"
	"courier/internal/testsupport"
)

func getJSON(t *testing.T, url, token string, dest any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dest != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStatusAPIServesQueue(t *testing.T) {
	lib := newFakeLibrary(t, false)
	cfg := testsupport.NewConfig(t, testsupport.WithLibraryURL(lib.server.URL))
	d := newDaemon(t, cfg)
	startDaemon(t, d)
	ctx := context.Background()
	waitConnectivity(t, d, false)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("status api reported no address")
	}
	base := "http://" + addr

	path := filepath.Join(testsupport.BaseDir(cfg), "pier.png")
	testsupport.WritePNG(t, path, 6, 6)
	entry, err := d.Enqueue(ctx, path)
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	var status api.DaemonStatus
	if code := getJSON(t, base+"/api/status", "", &status); code != http.StatusOK {
		t.Fatalf("GET /api/status = %d, want 200", code)
	}
	if !status.Running || status.Uploader.Stats.Total != 1 {
		t.Fatalf("status = %+v, want running with one entry", status)
	}

	var list api.QueueListResponse
	if code := getJSON(t, base+"/api/queue", "", &list); code != http.StatusOK {
		t.Fatalf("GET /api/queue = %d, want 200", code)
	}
	if len(list.Entries) != 1 || list.Entries[0].ID != entry.ID {
		t.Fatalf("queue list = %+v, want the enqueued entry", list.Entries)
	}
	if list.Entries[0].Status != string(queue.StatusQueued) {
		t.Fatalf("entry status = %q, want queued", list.Entries[0].Status)
	}

	var filtered api.QueueListResponse
	if code := getJSON(t, base+"/api/queue?status=error", "", &filtered); code != http.StatusOK {
		t.Fatalf("GET /api/queue?status=error = %d, want 200", code)
	}
	if len(filtered.Entries) != 0 {
		t.Fatalf("filtered list = %d entries, want 0", len(filtered.Entries))
	}

	var single api.QueueEntryResponse
	if code := getJSON(t, base+"/api/queue/"+entry.ID, "", &single); code != http.StatusOK {
		t.Fatalf("GET /api/queue/{id} = %d, want 200", code)
	}
	if single.Entry.FileName != "pier.png" {
		t.Fatalf("entry file = %q, want pier.png", single.Entry.FileName)
	}

	if code := getJSON(t, base+"/api/queue/absent", "", nil); code != http.StatusNotFound {
		t.Fatalf("GET /api/queue/absent = %d, want 404", code)
	}

	resp, err := http.Post(base+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /api/status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusAPIRequiresToken(t *testing.T) {
	lib := newFakeLibrary(t, false)
	cfg := testsupport.NewConfig(t,
		testsupport.WithLibraryURL(lib.server.URL),
		testsupport.WithAPIToken("s3cret"),
	)
	d := newDaemon(t, cfg)
	startDaemon(t, d)

	base := "http://" + d.APIAddr()
	if code := getJSON(t, base+"/api/status", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated GET = %d, want 401", code)
	}
	if code := getJSON(t, base+"/api/status", "wrong", nil); code != http.StatusUnauthorized {
		t.Fatalf("wrong token GET = %d, want 401", code)
	}
	var status api.DaemonStatus
	if code := getJSON(t, base+"/api/status", "s3cret", &status); code != http.StatusOK {
		t.Fatalf("authenticated GET = %d, want 200", code)
	}
	if !status.Running {
		t.Fatal("status reports not running")
	}
}

func TestStatusAPIDisabledWithoutBind(t *testing.T) {
	lib := newFakeLibrary(t, false)
	cfg := testsupport.NewConfig(t, testsupport.WithLibraryURL(lib.server.URL))
	cfg.Daemon.APIBind = ""

	d := newDaemon(t, cfg)
	startDaemon(t, d)
	if addr := d.APIAddr(); addr != "" {
		t.Fatalf("APIAddr = %q, want empty when the api is disabled", addr)
	}
}
