package policy

import (
	"jobcontroller/internal/attr"
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	t.Parallel()
	got := ParseList("a.dat, b.dat\n*.log\t/tmp/x,,")
	want := List{"a.dat", "b.dat", "*.log", "/tmp/x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseList = %q, want %q", got, want)
	}
	if len(ParseList("")) != 0 {
		t.Error("empty list should parse to no entries")
	}
}

func TestList_Contains(t *testing.T) {
	t.Parallel()
	list := ParseList("input.dat /scratch/exact.bin *.log /data/*/out.txt")

	tests := []struct {
		path string
		want bool
	}{
		{"/home/joe/input.dat", true},   // base filename exact
		{"input.dat", true},             // name exact
		{"/scratch/exact.bin", true},    // full path exact
		{"/other/exact.bin", false},     // full path entry does not match by base
		{"/home/joe/run.log", true},     // wildcard against base
		{"/home/joe/run.LOG", false},    // case-sensitive
		{"/data/a/b/out.txt", true},     // '*' crosses segments
		{"/data/out.txt", false},        // both slashes around '*' are literal
		{"/home/joe/input.data", false}, // no prefix matching
		{"/home/joe/", false},           // empty base
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			if got := list.Contains(tt.path); got != tt.want {
				t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestMatchEntry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"/scratch/*", "/scratch/sub/b", true},
		{"/home/joe/in*", "/home/joe/input/part1", true},
		{"*", "", true},
		{"*.tar*", "x.tar.gz", true},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "acb", false},
		{"ab*ba", "aba", false}, // prefix and suffix may not overlap
		{"a?b", "axb", false},   // '?' is literal
		{"a?b", "a?b", true},
		{"[abc", "[abc", true},
		{"[abc", "a", false},
		{"{x,y}", "x", false},
	}
	for _, tt := range tests {
		if got := matchEntry(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matchEntry(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestParseRemaps(t *testing.T) {
	t.Parallel()
	got := ParseRemaps(" a = /x/a ; output.log=buffer:remote:/scratch/output.log;bad entry; semi\\;colon = /y ;=nope")
	want := RemapTable{
		{Name: "a", Target: "/x/a"},
		{Name: "output.log", Target: "buffer:remote:/scratch/output.log"},
		{Name: "semi;colon", Target: "/y"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseRemaps = %+v, want %+v", got, want)
	}
}

func TestRemapTable_FindPriority(t *testing.T) {
	t.Parallel()
	table := ParseRemaps("/home/joe/data = /full; data = /base; joe/data = /logical")

	if got, _ := table.Find("joe/data", "data", "/home/joe/data"); got != "/logical" {
		t.Errorf("logical name should win, got %q", got)
	}
	if got, _ := table.Find("other/data", "data", "/home/joe/data"); got != "/base" {
		t.Errorf("base name should beat full path, got %q", got)
	}
	if got, _ := table.Find("x", "y", "/home/joe/data"); got != "/full" {
		t.Errorf("full path fallback, got %q", got)
	}
	if _, ok := table.Find("nothing"); ok {
		t.Error("unexpected match")
	}
}

func TestParseBufferParams(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want BufferParams
		ok   bool
	}{
		{"(1024,64)", BufferParams{1024, 64}, true},
		{" ( 2048 , 128 )trailing", BufferParams{2048, 128}, true},
		{"(1024)", BufferParams{}, false},
		{"", BufferParams{}, false},
		{"yes", BufferParams{}, false},
		{"(a,b)", BufferParams{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseBufferParams(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseBufferParams(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if s := (BufferParams{1, 2}).String(); s != "(1,2)" {
		t.Errorf("String() = %q", s)
	}
}

func TestEngine(t *testing.T) {
	t.Parallel()
	rec := attr.New()
	rec.SetString(attr.LocalFiles, "local.txt")
	rec.SetString(attr.FetchFiles, "*.in")
	rec.SetString(attr.CompressFiles, "/data/big.gz")
	rec.SetString(attr.AppendFiles, "log.txt")
	rec.SetString(attr.BufferFiles, "plain.dat = yes; sized.dat = (4096,512)")
	e := NewEngine(rec)

	if !e.Local("/dev/null") || !e.Local("/dev/zero") || !e.Local("/a/local.txt") {
		t.Error("expected local paths")
	}
	if e.Local("/a/remote.txt") {
		t.Error("unexpected local path")
	}
	if !e.Fetch("/x/job.in") || e.Fetch("/x/job.out") {
		t.Error("fetch policy mismatch")
	}
	if !e.Compress("/data/big.gz") {
		t.Error("compress policy mismatch")
	}
	if !e.Append("/w/log.txt") {
		t.Error("append policy mismatch")
	}

	if p, ok := e.BufferOverride("/w/plain.dat"); !ok || p != nil {
		t.Errorf("plain override = %v, %v", p, ok)
	}
	if p, ok := e.BufferOverride("/w/sized.dat"); !ok || p == nil || *p != (BufferParams{4096, 512}) {
		t.Errorf("sized override = %v, %v", p, ok)
	}
	if _, ok := e.BufferOverride("/w/other.dat"); ok {
		t.Error("unexpected override")
	}
}
