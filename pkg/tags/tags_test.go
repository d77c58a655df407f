package tags

import (
	"reflect"
	"testing"
)

func TestScanMarkers(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []span
	}{
		{
			name: "line comment",
			text: "// hx@tag1",
			want: []span{{name: "tag1", start: 6, end: 10}},
		},
		{
			name: "multiple markers in one comment",
			text: "# hx@a hx@b",
			want: []span{{name: "a", start: 5, end: 6}, {name: "b", start: 10, end: 11}},
		},
		{
			name: "block comment spanning lines",
			text: "/* hx@x\n hx@y */",
			want: []span{{name: "x", start: 6, end: 7}, {name: "y", start: 12, end: 13}},
		},
		{
			name: "identifier charset",
			text: "// hx@get_user-2 trailing",
			want: []span{{name: "get_user-2", start: 6, end: 16}},
		},
		{
			name: "no markers",
			text: "// plain comment",
			want: nil,
		},
		{
			name: "marker with no identifier",
			text: "// hx@",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanMarkers(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("scanMarkers(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestScanList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []span
	}{
		{
			name:  "single identifier",
			value: "tag1",
			want:  []span{{name: "tag1", start: 0, end: 4}},
		},
		{
			name:  "comma separated",
			value: "tag1,tag2",
			want:  []span{{name: "tag1", start: 0, end: 4}, {name: "tag2", start: 5, end: 9}},
		},
		{
			name:  "comma and space",
			value: "tag1, tag2",
			want:  []span{{name: "tag1", start: 0, end: 4}, {name: "tag2", start: 6, end: 10}},
		},
		{
			name:  "surrounding spaces trimmed",
			value: " spaced ",
			want:  []span{{name: "spaced", start: 1, end: 7}},
		},
		{
			name:  "empty segments skipped",
			value: "a,,b",
			want:  []span{{name: "a", start: 0, end: 1}, {name: "b", start: 3, end: 4}},
		},
		{
			name:  "empty value",
			value: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanList(tt.value); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("scanList(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
