package addonsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// fakeIdentity hands out ids and counts lookups
type fakeIdentity struct {
	calls map[string]int
	err   error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{calls: make(map[string]int)}
}

func (f *fakeIdentity) AddonID(_ context.Context, name string) (string, error) {
	f.calls[name]++
	if f.err != nil {
		return "", f.err
	}
	return "uuid-" + name, nil
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp{Secs: 1700000000, Nanos: 123456789}
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	expected := `{"secs_since_epoch":1700000000,"nanos_since_epoch":123456789}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, data)
	}

	var back Timestamp
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != ts {
		t.Errorf("Round trip changed timestamp: %+v", back)
	}
}

func TestTimestampFromTime(t *testing.T) {
	tm := time.Unix(1700000000, 42)
	ts := TimestampFromTime(tm)
	if ts.Secs != 1700000000 || ts.Nanos != 42 {
		t.Errorf("Unexpected timestamp %+v", ts)
	}
	if !ts.Time().Equal(tm) {
		t.Errorf("Time() = %v, expected %v", ts.Time(), tm)
	}

	if !TimestampFromTime(time.Unix(-5, 0)).IsZero() {
		t.Error("Times before the epoch should clamp to zero")
	}
}

func TestFileRecordModifiedOmitted(t *testing.T) {
	rec := FileRecord{RelativePath: "@a/x", AbsolutePath: "/m/@a/x", Hash: "AB"}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	if _, ok := fields["modified"]; ok {
		t.Error("modified should be omitted when unset")
	}
	for _, key := range []string{"relative_filepath", "absolute_filepath", "created", "filesize", "hash"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing field %s", key)
		}
	}
}

func TestNewVersionTag(t *testing.T) {
	now := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	if tag := NewVersionTag(now); tag != "20240309-070501" {
		t.Errorf("Unexpected version tag %s", tag)
	}
}

func TestEnsureAddon(t *testing.T) {
	cache := NewCache()
	identity := newFakeIdentity()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	addon, created, err := cache.EnsureAddon(context.Background(), "@core", identity, now)
	if err != nil {
		t.Fatalf("EnsureAddon: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the addon")
	}
	if addon.UUID != "uuid-@core" || addon.Version != "20240102-030405" || addon.Name != "@core" {
		t.Errorf("Unexpected addon %+v", addon)
	}
	if addon.Files == nil {
		t.Error("New addon should have an empty file map")
	}

	again, created, err := cache.EnsureAddon(context.Background(), "@core", identity, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if created || again != addon {
		t.Error("Second call should return the existing addon")
	}
	if identity.calls["@core"] != 1 {
		t.Errorf("Expected one id lookup, got %d", identity.calls["@core"])
	}
	if again.Version != "20240102-030405" {
		t.Errorf("Existing addon version changed to %s", again.Version)
	}
}

func TestEnsureAddonLookupFailure(t *testing.T) {
	cache := NewCache()
	identity := newFakeIdentity()
	identity.err = errors.New("service down")

	if _, _, err := cache.EnsureAddon(context.Background(), "@core", identity, time.Now()); err == nil {
		t.Fatal("Expected lookup failure to propagate")
	}
	if cache.Addon("@core") != nil {
		t.Error("Failed lookup must not create an addon")
	}
}

func TestCachePrune(t *testing.T) {
	cache := NewCache()
	cache.Addons["@a"] = &AddonRecord{Name: "@a", Files: map[string]*FileRecord{
		"/m/@a/keep": {AbsolutePath: "/m/@a/keep", Hash: "1"},
		"/m/@a/gone": {AbsolutePath: "/m/@a/gone", Hash: "2"},
	}}
	cache.Addons["@b"] = &AddonRecord{Name: "@b", Files: map[string]*FileRecord{
		"/m/@b/gone": {AbsolutePath: "/m/@b/gone", Hash: "3"},
	}}

	keep := NewWalkResult(16)
	keep.Add("/m/@a/keep", "/m")

	if pruned := cache.Prune(keep); pruned != 2 {
		t.Errorf("Expected 2 pruned records, got %d", pruned)
	}
	if _, ok := cache.Addons["@a"].Files["/m/@a/keep"]; !ok {
		t.Error("Walked file was pruned")
	}
	if cache.FileCount() != 1 {
		t.Errorf("Expected 1 remaining file, got %d", cache.FileCount())
	}
	// addons are kept even when they lose every file
	if cache.Addon("@b") == nil {
		t.Error("Addon entry should survive losing all its files")
	}
}

func TestCacheSortedNames(t *testing.T) {
	cache := NewCache()
	for _, name := range []string{"@zeta", "@alpha", "@mid"} {
		cache.Addons[name] = &AddonRecord{Name: name}
	}
	names := cache.SortedNames()
	if len(names) != 3 || names[0] != "@alpha" || names[2] != "@zeta" {
		t.Errorf("Unexpected order %v", names)
	}
}

func TestCacheNormalize(t *testing.T) {
	cache := &Cache{Addons: map[string]*AddonRecord{
		"@a": {Name: "@a"},
		"@b": nil,
	}}
	cache.normalize()
	if cache.Addons["@a"].Files == nil {
		t.Error("normalize should allocate file maps")
	}
	if _, ok := cache.Addons["@b"]; ok {
		t.Error("normalize should drop nil addons")
	}
}
