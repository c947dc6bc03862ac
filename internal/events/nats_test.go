package events

import (
	"errors"
	"testing"
)

type fakeNATS struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return f.err
}

func TestNATSMirror_ForwardsAndDelivers(t *testing.T) {
	local := NewBroadcaster()
	sub := local.Subscribe("conv.1")
	conn := &fakeNATS{}
	m := NewNATSMirror(local, conn, "app.events.", nil)

	m.Publish("conv.1", EventAgentStarted, Started{Agent: "scribe"})

	if len(conn.subjects) != 1 || conn.subjects[0] != "app.events.conv_1" {
		t.Fatalf("subjects = %v", conn.subjects)
	}
	got := <-sub.C
	if string(got) != string(conn.payloads[0]) {
		t.Error("local and NATS payloads differ")
	}
}

func TestNATSMirror_ErrorIsSwallowed(t *testing.T) {
	conn := &fakeNATS{err: errors.New("no responders")}
	m := NewNATSMirror(nil, conn, "", nil)
	m.Publish("s", EventAgentCompleted, Completed{Agent: "advisor"})

	if conn.subjects[0] != DefaultNATSPrefix+".s" {
		t.Errorf("subject = %q", conn.subjects[0])
	}
}

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"abc-123", "abc-123"},
		{"a.b*c>d e", "a_b_c_d_e"},
		{"", "_"},
	}
	for _, tt := range tests {
		if got := subjectToken(tt.in); got != tt.want {
			t.Errorf("subjectToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
