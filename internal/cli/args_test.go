package cli

import (
	"reflect"
	"testing"
)

func TestExpandArgs(t *testing.T) {
	argSpec := ArgSpec{Multi: []string{"user", "libraries"}, Optional: []string{"kill"}}
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "multi values",
			in:   []string{"--share", "--user", "alice", "bob", "--libraries", "Movies", "TV Shows"},
			want: []string{"--share", "--user=alice", "--user=bob", "--libraries=Movies", "--libraries=TV Shows"},
		},
		{
			name: "multi without values is left for pflag",
			in:   []string{"--user", "--allLibraries"},
			want: []string{"--user", "--allLibraries"},
		},
		{
			name: "optional with message",
			in:   []string{"--kill", "Back soon", "--user", "bob"},
			want: []string{"--kill=Back soon", "--user=bob"},
		},
		{
			name: "optional without message",
			in:   []string{"--kill", "--unshare"},
			want: []string{"--kill", "--unshare"},
		},
		{
			name: "equals form untouched",
			in:   []string{"--user=alice", "--kill=msg"},
			want: []string{"--user=alice", "--kill=msg"},
		},
		{
			name: "terminator",
			in:   []string{"--user", "alice", "--", "--user", "bob"},
			want: []string{"--user=alice", "--", "--user", "bob"},
		},
		{
			name: "unknown flags pass through",
			in:   []string{"--ratingKey", "123", "--userTo", "a"},
			want: []string{"--ratingKey", "123", "--userTo", "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandArgs(tt.in, argSpec)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExpandArgs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
