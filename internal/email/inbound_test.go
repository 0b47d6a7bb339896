package email

import (
	"testing"

	"github.com/google/uuid"
)

func TestMatchLead(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		subject string
		want    uuid.UUID
		ok      bool
	}{
		{"Missed Call Follow-Up [Lead:" + id.String() + "]", id, true},
		{"Re: Missed Call Follow-Up [Lead:" + id.String() + "]", id, true},
		{"Fwd: hello [Lead:" + id.String() + "] thanks", id, true},
		{"Missed Call Follow-Up", uuid.Nil, false},
		{"[Lead:not-a-uuid-at-all-but-36-chars-long]", uuid.Nil, false},
		{"", uuid.Nil, false},
	}

	for _, tc := range cases {
		got, ok := matchLead(tc.subject)
		if ok != tc.ok {
			t.Fatalf("subject %q: expected ok=%v, got %v", tc.subject, tc.ok, ok)
		}
		if got != tc.want {
			t.Fatalf("subject %q: expected %s, got %s", tc.subject, tc.want, got)
		}
	}
}
