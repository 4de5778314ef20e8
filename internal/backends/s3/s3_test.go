package s3

import (
	"testing"
	"time"

	"github.com/objectfs/objectfs/pkg/types"
)

func TestAdapterKey(t *testing.T) {
	a := &Adapter{}
	cases := []struct {
		root, rel, want string
	}{
		{"bucket-root", "file.txt", "bucket-root/file.txt"},
		{"", "file.txt", "file.txt"},
		{"root", "", "root"},
		{"root/sub", "a/b.txt", "root/sub/a/b.txt"},
	}
	for _, c := range cases {
		if got := a.key(c.root, c.rel); got != c.want {
			t.Errorf("key(%q, %q) = %q, want %q", c.root, c.rel, got, c.want)
		}
	}
}

func TestResolveRoot(t *testing.T) {
	a := &Adapter{}
	cases := []struct{ in, want string }{
		{"/sub/path/", "sub/path"},
		{"sub/path", "sub/path"},
		{"/", ""},
		{"", ""},
	}
	for _, c := range cases {
		got, err := a.ResolveRoot(c.in)
		if err != nil {
			t.Fatalf("ResolveRoot(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ResolveRoot(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTranslateListing(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("files and subdirs under a prefix", func(t *testing.T) {
		objects := []types.ObjectInfo{
			{Key: "photos/a.jpg", Size: 100, LastModified: now},
			{Key: "photos/b.jpg", Size: 200, LastModified: now},
		}
		subdirs := []string{"photos/2026/"}

		entries := translateListing("photos/", objects, subdirs)

		if len(entries) != 3 {
			t.Fatalf("got %d entries, want 3", len(entries))
		}

		byName := make(map[string]types.DirEntry, len(entries))
		for _, e := range entries {
			byName[e.Name] = e
		}

		a, ok := byName["a.jpg"]
		if !ok {
			t.Fatalf("missing entry a.jpg: %+v", entries)
		}
		if a.IsDir || a.Kind != types.KindFile || a.Size != 100 || a.Mtime != now.Unix() {
			t.Errorf("a.jpg entry wrong: %+v", a)
		}

		dir, ok := byName["2026"]
		if !ok {
			t.Fatalf("missing subdir entry 2026: %+v", entries)
		}
		if !dir.IsDir || dir.Kind != types.KindDir {
			t.Errorf("2026 entry wrong: %+v", dir)
		}
	})

	t.Run("empty prefix at bucket root", func(t *testing.T) {
		objects := []types.ObjectInfo{{Key: "readme.txt", Size: 5, LastModified: now}}
		subdirs := []string{"logs/"}

		entries := translateListing("", objects, subdirs)

		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
	})

	t.Run("prefix itself never appears as an entry", func(t *testing.T) {
		objects := []types.ObjectInfo{{Key: "photos/", Size: 0, LastModified: now}}
		subdirs := []string{"photos/"}

		entries := translateListing("photos/", objects, subdirs)

		if len(entries) != 0 {
			t.Errorf("expected the prefix marker to be skipped, got %+v", entries)
		}
	})

	t.Run("no objects or subdirs", func(t *testing.T) {
		entries := translateListing("empty/", nil, nil)
		if len(entries) != 0 {
			t.Errorf("got %+v, want empty", entries)
		}
	})
}
