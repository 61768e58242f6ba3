package utils

import (
	"testing"
	"testing/fstest"
)

func TestNormalizeJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "minifies", in: "{\n  \"a\": 1,\n  \"b\": [1, 2]\n}", want: `{"a":1,"b":[1,2]}`},
		{name: "empty", in: "", want: ""},
		{name: "invalid passes through", in: "{not json", want: "{not json"},
		{name: "stable key order", in: `{"b":2,"a":1}`, want: `{"a":1,"b":2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeJSON(tc.in); got != tc.want {
				t.Fatalf("NormalizeJSON(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGlobRecursive(t *testing.T) {
	fsys := fstest.MapFS{
		"assets/karpenter/nodepool.yaml":     {Data: []byte("a")},
		"assets/karpenter/ec2nodeclass.yaml": {Data: []byte("b")},
		"assets/karpenter/notes.txt":         {Data: []byte("c")},
		"assets/other/extra.yaml":            {Data: []byte("d")},
	}
	got, err := GlobRecursive(fsys, "assets/karpenter", "**/*.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	for _, p := range got {
		if p == "assets/karpenter/notes.txt" {
			t.Fatalf("txt file should not match")
		}
	}
}
