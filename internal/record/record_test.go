package record

import "testing"

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello World", "Hello World"},
		{"single re", "Re: Hello", "Hello"},
		{"repeated re fwd", "Re: Fwd: Re: Hello", "Hello"},
		{"german aw", "AW: Meeting notes", "Meeting notes"},
		{"swedish sv", "SV: Faktura", "Faktura"},
		{"dutch antw", "Antw: Bericht", "Bericht"},
		{"french r", "R: Réunion", "Réunion"},
		{"case insensitive", "RE: hello", "hello"},
		{"whitespace", "  Re:   padded  ", "padded"},
		{"no prefix numeric colon", "3: not a prefix", "3: not a prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSubject(tt.in); got != tt.want {
				t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSubject_Idempotent(t *testing.T) {
	subjects := []string{"Re: Fwd: Hello", "Plain subject", "AW: SV: test", ""}
	for _, s := range subjects {
		once := NormalizeSubject(s)
		twice := NormalizeSubject(once)
		if once != twice {
			t.Errorf("NormalizeSubject not idempotent for %q: once=%q twice=%q", s, once, twice)
		}
	}
}

func TestNormalizeSubject_ReStrip(t *testing.T) {
	s := "Quarterly report"
	if got := NormalizeSubject("Re: " + s); got != NormalizeSubject(s) {
		t.Errorf("NormalizeSubject(%q) = %q, want %q", "Re: "+s, got, NormalizeSubject(s))
	}
}

func TestDeriveThreadID(t *testing.T) {
	tests := []struct {
		name string
		in   ThreadIDInputs
		want string
	}{
		{
			name: "gm thrid wins",
			in:   ThreadIDInputs{GmThrid: "12345", ThreadTopic: "ignored", Subject: "ignored"},
			want: "12345",
		},
		{
			name: "thread topic when no gm thrid",
			in:   ThreadIDInputs{ThreadTopic: "Project X", References: "<ref@x.com>"},
			want: "Project X",
		},
		{
			name: "references first token",
			in:   ThreadIDInputs{References: "<first@x.com> <second@x.com>", InReplyTo: "<third@x.com>"},
			want: "first@x.com",
		},
		{
			name: "in reply to fallback",
			in:   ThreadIDInputs{InReplyTo: "<only@x.com>"},
			want: "only@x.com",
		},
		{
			name: "synthetic from subject",
			in:   ThreadIDInputs{Subject: "Re: Weekly Update!"},
			want: "subject:weekly-update",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveThreadID(tt.in); got != tt.want {
				t.Errorf("DeriveThreadID(%+v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestObservedSize(t *testing.T) {
	if got := ObservedSize(50); got != 50 {
		t.Errorf("ObservedSize(50) = %d, want 50", got)
	}
	if got := ObservedSize(MaxObservedSize + 1); got != MaxObservedSize {
		t.Errorf("ObservedSize(over cap) = %d, want %d", got, MaxObservedSize)
	}
}

func TestStableID_Deterministic(t *testing.T) {
	raw := []byte("From: a@b.com\r\n\r\nhello")
	a := StableID(raw)
	b := StableID(raw)
	if a != b {
		t.Errorf("StableID not deterministic: %q vs %q", a, b)
	}
	if StableID([]byte("different")) == a {
		t.Error("StableID collided for different input")
	}
}
