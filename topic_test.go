package mqclient

import "testing"

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		filter, topic string
		want          bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},
		{"a/+", "a/b", true},
		{"a/+", "a/b/c", false},
		{"+/tennis/#", "sport/tennis/player1", true},
		{"+/tennis/#", "sport/tennis/player1/ranking", true},
		{"sport/#", "sport", true},
		{"sport/#", "sport/tennis", true},
		{"a/#", "a/b/c", true},
		{"a/b/c", "a/b", false},
		{"#", "a/b/c", true},
		{"#", "$SYS/broker", false},
		{"+/broker", "$SYS/broker", false},
		{"$SYS/#", "$SYS/broker", true},
		{"$SYS/broker", "$SYS/broker", true},
	}

	for _, tc := range cases {
		got := matchTopic(tc.filter, tc.topic)
		if got != tc.want {
			t.Errorf("matchTopic(%q, %q) = %v, want %v", tc.filter, tc.topic, got, tc.want)
		}
	}
}
