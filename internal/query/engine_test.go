package query

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type stubSource struct {
	collections map[string][]Document
}

func (s *stubSource) Collection(_ context.Context, name string) ([]Document, error) {
	docs, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", name)
	}
	// Fresh documents per call, as a real source provides.
	snapshot := make([]Document, len(docs))
	for i, doc := range docs {
		clone := make(Document, len(doc))
		for k, v := range doc {
			clone[k] = v
		}
		snapshot[i] = clone
	}
	return snapshot, nil
}

func fixtureVideos(n int) []Document {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	docs := make([]Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, Document{
			"id":        fmt.Sprintf("vid-%03d", i),
			"ownerId":   fmt.Sprintf("acct-%d", i%3),
			"title":     fmt.Sprintf("Video number %d", i),
			"views":     int64(i * 7 % 50),
			"createdAt": base.Add(time.Duration(i) * time.Hour),
		})
	}
	return docs
}

func newTestEngine(collections map[string][]Document) *Engine {
	return NewEngine(&stubSource{collections: collections})
}

func TestPaginateDisjointStablePages(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": fixtureVideos(25)})
	pipeline := NewPipeline().SortBy("createdAt", false)

	first, err := engine.Paginate(context.Background(), "videos", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate page 1 error: %v", err)
	}
	second, err := engine.Paginate(context.Background(), "videos", pipeline, 2, 10)
	if err != nil {
		t.Fatalf("Paginate page 2 error: %v", err)
	}

	if first.Total != 25 || second.Total != 25 {
		t.Fatalf("totals = %d, %d, want 25", first.Total, second.Total)
	}
	if first.TotalPages != 3 {
		t.Fatalf("total pages = %d, want 3", first.TotalPages)
	}
	if len(first.Items) != 10 || len(second.Items) != 10 {
		t.Fatalf("page sizes = %d, %d, want 10", len(first.Items), len(second.Items))
	}

	seen := make(map[string]bool)
	for _, doc := range first.Items {
		seen[doc["id"].(string)] = true
	}
	for _, doc := range second.Items {
		id := doc["id"].(string)
		if seen[id] {
			t.Fatalf("pages overlap on %s", id)
		}
		seen[id] = true
	}
	// Union of the two pages equals the first 20 of the fully sorted set.
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("vid-%03d", i)
		if !seen[id] {
			t.Fatalf("union of pages missing %s", id)
		}
	}
}

func TestPaginateClampsOutOfRangeInput(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": fixtureVideos(5)})

	page, err := engine.Paginate(context.Background(), "videos", NewPipeline(), -3, 0)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if page.Page != DefaultPage || page.Limit != DefaultLimit {
		t.Fatalf("clamped page/limit = %d/%d, want %d/%d", page.Page, page.Limit, DefaultPage, DefaultLimit)
	}

	page, err = engine.Paginate(context.Background(), "videos", NewPipeline(), 1, 5000)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if page.Limit != MaxLimit {
		t.Fatalf("limit = %d, want cap %d", page.Limit, MaxLimit)
	}
}

func TestPaginateBeyondLastPageIsEmpty(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": fixtureVideos(5)})
	page, err := engine.Paginate(context.Background(), "videos", NewPipeline(), 4, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("items beyond last page = %d, want 0", len(page.Items))
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
}

func TestMatchEqualityAndCaseInsensitiveSearch(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": {
		{"id": "a", "ownerId": "acct-1", "title": "Baking Sourdough Bread"},
		{"id": "b", "ownerId": "acct-2", "title": "Gardening for beginners"},
		{"id": "c", "ownerId": "acct-1", "title": "BREAD science deep dive"},
	}})

	pipeline := NewPipeline().
		MatchField("ownerId", "acct-1").
		Match(Match{Conditions: []Condition{{Field: "title", Op: OpContains, Value: "bread", FoldCase: true}}})

	page, err := engine.Paginate(context.Background(), "videos", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2 (case-insensitive match)", page.Total)
	}
}

func TestSortDescendingWithStableTieBreak(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": {
		{"id": "b", "views": int64(10)},
		{"id": "a", "views": int64(10)},
		{"id": "c", "views": int64(30)},
	}})
	pipeline := NewPipeline().SortBy("views", true)

	page, err := engine.Paginate(context.Background(), "videos", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	got := []string{}
	for _, doc := range page.Items {
		got = append(got, doc["id"].(string))
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestJoinAttachesOwnerProjection(t *testing.T) {
	engine := newTestEngine(map[string][]Document{
		"videos": {
			{"id": "vid-1", "ownerId": "acct-1", "title": "First"},
		},
		"accounts": {
			{"id": "acct-1", "handle": "alice", "displayName": "Alice", "email": "alice@example.com"},
		},
	})
	pipeline := NewPipeline().Join(Join{
		From:         "accounts",
		LocalField:   "ownerId",
		ForeignField: "id",
		As:           "owner",
		First:        true,
		Pipeline:     NewPipeline().Project("id", "handle", "displayName"),
	})

	page, err := engine.Paginate(context.Background(), "videos", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	owner, ok := page.Items[0]["owner"].(Document)
	if !ok {
		t.Fatalf("owner = %T, want Document", page.Items[0]["owner"])
	}
	if owner["handle"] != "alice" {
		t.Fatalf("owner handle = %v, want alice", owner["handle"])
	}
	if _, leaked := owner["email"]; leaked {
		t.Fatal("join projection must drop unlisted fields")
	}
}

func TestJoinCountsFilteredRelations(t *testing.T) {
	engine := newTestEngine(map[string][]Document{
		"comments": {
			{"id": "com-1", "videoId": "vid-1"},
		},
		"relations": {
			{"id": "rel-1", "targetId": "com-1", "kind": "like-comment"},
			{"id": "rel-2", "targetId": "com-1", "kind": "like-comment"},
			{"id": "rel-3", "targetId": "com-1", "kind": "like-video"},
		},
	})
	pipeline := NewPipeline().Join(Join{
		From:         "relations",
		LocalField:   "id",
		ForeignField: "targetId",
		As:           "likeCount",
		Count:        true,
		Pipeline:     NewPipeline().MatchField("kind", "like-comment"),
	})

	page, err := engine.Paginate(context.Background(), "comments", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if got := page.Items[0]["likeCount"]; got != 2 {
		t.Fatalf("likeCount = %v, want 2", got)
	}
}

func TestNestedJoinOneLevel(t *testing.T) {
	engine := newTestEngine(map[string][]Document{
		"history": {
			{"id": "h1", "accountId": "acct-2", "videoId": "vid-1"},
		},
		"videos": {
			{"id": "vid-1", "ownerId": "acct-1", "title": "First"},
		},
		"accounts": {
			{"id": "acct-1", "handle": "alice"},
		},
	})
	pipeline := NewPipeline().Join(Join{
		From:         "videos",
		LocalField:   "videoId",
		ForeignField: "id",
		As:           "video",
		First:        true,
		Pipeline: NewPipeline().Join(Join{
			From:         "accounts",
			LocalField:   "ownerId",
			ForeignField: "id",
			As:           "owner",
			First:        true,
		}),
	})

	page, err := engine.Paginate(context.Background(), "history", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	video, ok := page.Items[0]["video"].(Document)
	if !ok {
		t.Fatalf("video = %T, want Document", page.Items[0]["video"])
	}
	owner, ok := video["owner"].(Document)
	if !ok {
		t.Fatalf("owner = %T, want Document", video["owner"])
	}
	if owner["handle"] != "alice" {
		t.Fatalf("nested owner handle = %v, want alice", owner["handle"])
	}
}

func TestProjectionLimitsTopLevelFields(t *testing.T) {
	engine := newTestEngine(map[string][]Document{"videos": {
		{"id": "vid-1", "title": "First", "mediaUrl": "https://cdn/v1"},
	}})
	pipeline := NewPipeline().Project("id", "title")

	page, err := engine.Paginate(context.Background(), "videos", pipeline, 1, 10)
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if _, ok := page.Items[0]["mediaUrl"]; ok {
		t.Fatal("projection must drop unlisted fields")
	}
	if page.Items[0]["title"] != "First" {
		t.Fatalf("projected title = %v", page.Items[0]["title"])
	}
}
