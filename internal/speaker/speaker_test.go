package speaker

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestKeyFuncs(t *testing.T) {
	t.Parallel()

	craig := DelimitedKey("-", 2, true)
	pattern := PatternKey(regexp.MustCompile(`^\d+-(?P<speaker>[^-]+)`))
	group1 := PatternKey(regexp.MustCompile(`^track_(\w+)$`))
	noGroup := PatternKey(regexp.MustCompile(`^track`))

	tests := []struct {
		name string
		fn   KeyFunc
		stem string
		want string
	}{
		{"default prefix and id", DefaultKeyFunc, "track-alice", "alice"},
		{"default drops suffix", DefaultKeyFunc, "track-alice-0", "alice"},
		{"default no delimiter", DefaultKeyFunc, "alice", "alice"},
		{"default empty id", DefaultKeyFunc, "track--0", "track--0"},
		{"default trailing delimiter", DefaultKeyFunc, "track-", "track-"},
		{"rest keeps delimiters", craig, "craig-20260301-dm-sarah", "dm-sarah"},
		{"rest too short", craig, "craig-20260301", "craig-20260301"},
		{"empty delimiter", DelimitedKey("", 1, false), "a-b", "a-b"},
		{"craig three parts", CraigKey("-"), "craig-20260301-alice", "alice"},
		{"craig keeps trailing delimiters", CraigKey("-"), "1-20260301-dm-sarah", "dm-sarah"},
		{"craig two parts", CraigKey("-"), "1-alice", "alice"},
		{"craig single part", CraigKey("-"), "solo", "solo"},
		{"craig empty speaker", CraigKey("-"), "1-20260301-", "1-20260301-"},
		{"craig empty delimiter", CraigKey(""), "1-alice", "1-alice"},
		{"named group", pattern, "3-bob-extra", "bob"},
		{"named group no match", pattern, "bob", "bob"},
		{"group one", group1, "track_carol", "carol"},
		{"no capture group", noGroup, "track_carol", "track_carol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.fn(tt.stem); got != tt.want {
				t.Errorf("key(%q) = %q, want %q", tt.stem, got, tt.want)
			}
		})
	}
}

func TestStem(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"temp/transcriptions/track-alice.json": "track-alice",
		"track-bob.flac.json":                  "track-bob.flac",
		"noext":                                "noext",
	} {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolver_KeyAndDisplayName(t *testing.T) {
	t.Parallel()
	r := NewResolver(Map{"alice": "Alice", "bob": ""})

	if got := r.Key("/tmp/track-alice.json"); got != "alice" {
		t.Errorf("Key = %q, want alice", got)
	}
	tests := map[string]string{
		"alice":   "Alice",
		"bob":     "bob",
		"unknown": "unknown",
	}
	for key, want := range tests {
		if got := r.DisplayName(key); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", key, got, want)
		}
	}

	nilMap := NewResolver(nil)
	if got := nilMap.DisplayName("carol"); got != "carol" {
		t.Errorf("nil map DisplayName = %q, want carol", got)
	}
}

func TestResolver_IsIgnored(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil)

	tests := []struct {
		name string
		want bool
	}{
		{"Craig", true},
		{"craig-recorder", true},
		{"Bot Yan", true},
		{"bot_yan", true},
		{"BOTYAN#1234", true},
		{"B o t_Y a n", true},
		{"Alice", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.IsIgnored(tt.name); got != tt.want {
			t.Errorf("IsIgnored(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	custom := NewResolver(nil, WithIgnored([]string{"Music Bot", " "}))
	if !custom.IsIgnored("music_bot") {
		t.Error("custom fragment not matched")
	}
	if custom.IsIgnored("Craig") {
		t.Error("WithIgnored should replace the default fragments")
	}
	if custom.IsIgnored("Alice") {
		t.Error("blank fragment must not match everything")
	}
}

func TestResolver_WithKeyFunc(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil, WithKeyFunc(DelimitedKey("_", 0, false)), WithKeyFunc(nil))
	if got := r.Key("dana_track.json"); got != "dana" {
		t.Errorf("Key = %q, want dana", got)
	}
}

func TestResolver_Suggest(t *testing.T) {
	t.Parallel()
	r := NewResolver(Map{"sarah_dm": "Sarah", "marcus": "Marcus"})

	if got := r.Suggest("sara_dm"); got != "sarah_dm" {
		t.Errorf("Suggest(sara_dm) = %q, want sarah_dm", got)
	}
	if got := r.Suggest("zz"); got != "" {
		t.Errorf("Suggest(zz) = %q, want empty", got)
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	r.LogUnmapped(log, "marcus")
	if buf.Len() != 0 {
		t.Errorf("mapped key logged: %s", buf.String())
	}
	r.LogUnmapped(log, "markus")
	if !strings.Contains(buf.String(), "did_you_mean=marcus") {
		t.Errorf("missing hint in log: %s", buf.String())
	}
}

func TestLoadMap(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		want    Map
		wantErr bool
	}{
		{"json", write("map.json", `{"alice":"Alice","bob":"Bob"}`), Map{"alice": "Alice", "bob": "Bob"}, false},
		{"yaml", write("map.yaml", "alice: Alice\nbob: Bob\n"), Map{"alice": "Alice", "bob": "Bob"}, false},
		{"empty yaml", write("empty.yml", ""), Map{}, false},
		{"missing file", filepath.Join(dir, "nope.json"), Map{}, false},
		{"empty path", "", Map{}, false},
		{"corrupt json", write("bad.json", `{"alice":`), nil, true},
		{"wrong shape", write("list.json", `["alice"]`), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := LoadMap(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("got[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
