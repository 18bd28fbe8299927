package catalog

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInstanceRoundRobin(t *testing.T) {
	f := NewInstanceFinder([]string{"https://a", "https://b", "https://c"})
	want := []string{"https://a", "https://b", "https://c", "https://a"}
	for i, w := range want {
		if got := f.Instance(); got != w {
			t.Fatalf("call %d: got %q, want %q", i, got, w)
		}
	}
}

func TestEmptySeedFallsBackToBackups(t *testing.T) {
	f := NewInstanceFinder(nil)
	got := f.Instance()
	found := false
	for _, b := range backupInstances {
		if got == b {
			found = true
		}
	}
	if !found {
		t.Fatalf("instance %q not from the backup list", got)
	}
}

func TestUpdateTakesHealthiestThree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Second row has no uri field and must fall back to the name.
		w.Write([]byte(`[
			["one.example", {"uri": "https://one.example"}],
			["two.example", {}],
			["three.example", {"uri": "https://three.example"}],
			["four.example", {"uri": "https://four.example"}]
		]`))
	}))
	defer srv.Close()

	f := NewInstanceFinder([]string{"https://seed"})
	f.apiURL = srv.URL
	f.Update()

	want := map[string]bool{
		"https://one.example":   true,
		"https://two.example":   true,
		"https://three.example": true,
	}
	for i := 0; i < instanceCount; i++ {
		got := f.Instance()
		if !want[got] {
			t.Fatalf("instance %q not among the top three", got)
		}
		delete(want, got)
	}
	if len(want) != 0 {
		t.Fatalf("missing instances after update: %v", want)
	}
}

func TestUpdateKeepsBackupsOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not json"))
	}))
	defer srv.Close()

	f := NewInstanceFinder([]string{"https://seed"})
	f.apiURL = srv.URL
	f.Update()

	got := f.Instance()
	found := false
	for _, b := range backupInstances {
		if got == b {
			found = true
		}
	}
	if !found {
		t.Fatalf("instance %q not from the backup list after bad registry data", got)
	}
}
