package mentions

import (
	"testing"

	"desirebot/internal/social"
)

func mention(id string) social.Mention {
	return social.Mention{Ref: social.Ref{ID: id}}
}

func TestAdvance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		batch []social.Mention
		prior string
		want  string
	}{
		{name: "newest wins", batch: []social.Mention{mention("105"), mention("104"), mention("103")}, prior: "102", want: "105"},
		{name: "empty batch keeps cursor", batch: nil, prior: "102", want: "102"},
		{name: "empty batch without cursor", batch: []social.Mention{}, prior: "", want: ""},
		{name: "first run", batch: []social.Mention{mention("7")}, prior: "", want: "7"},
		{name: "blank head id keeps cursor", batch: []social.Mention{mention(""), mention("9")}, prior: "8", want: "8"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, cur := Advance(tt.batch, Cursor{LastSeenID: tt.prior})
			if cur.LastSeenID != tt.want {
				t.Fatalf("LastSeenID = %q, want %q", cur.LastSeenID, tt.want)
			}
			if len(out) != len(tt.batch) {
				t.Fatalf("len(out) = %d, want %d", len(out), len(tt.batch))
			}
			for i := range out {
				if out[i].ID != tt.batch[i].ID {
					t.Fatalf("order changed at %d: %q != %q", i, out[i].ID, tt.batch[i].ID)
				}
			}
		})
	}
}
