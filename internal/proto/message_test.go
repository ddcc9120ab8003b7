package proto

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestSetIdentityDataAcceptsStringOrObject(t *testing.T) {
	cases := []struct {
		raw  string
		want SetIdentityData
	}{
		{`"alice"`, SetIdentityData{Name: "alice"}},
		{`{"name":"bob"}`, SetIdentityData{Name: "bob"}},
		{`{"name":"carol","token":"t0k"}`, SetIdentityData{Name: "carol", Token: "t0k"}},
	}
	for _, tc := range cases {
		var got SetIdentityData
		if err := json.Unmarshal([]byte(tc.raw), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("unmarshal %s = %+v, want %+v", tc.raw, got, tc.want)
		}
	}

	var d SetIdentityData
	if err := json.Unmarshal([]byte(`42`), &d); err == nil {
		t.Fatalf("expected error for numeric payload")
	}
}

func TestSeenDataSingleAndBatch(t *testing.T) {
	var single SeenData
	if err := json.Unmarshal([]byte(`"m1"`), &single); err != nil {
		t.Fatalf("unmarshal single: %v", err)
	}
	if single.Batch || !slices.Equal(single.IDs, []string{"m1"}) {
		t.Fatalf("single = %+v", single)
	}

	var batch SeenData
	if err := json.Unmarshal([]byte(`["m1","m2"]`), &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if !batch.Batch || !slices.Equal(batch.IDs, []string{"m1", "m2"}) {
		t.Fatalf("batch = %+v", batch)
	}

	var bad SeenData
	if err := json.Unmarshal([]byte(`{"id":"m1"}`), &bad); err == nil {
		t.Fatalf("expected error for object payload")
	}
}

func TestInboundEnvelopeWithMissingData(t *testing.T) {
	var in Inbound
	if err := json.Unmarshal([]byte(`{"type":"stopTyping"}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.Type != InboundTypeStopTyping || len(in.Data) != 0 {
		t.Fatalf("unexpected envelope %+v", in)
	}

	var d SetIdentityData
	if err := d.UnmarshalJSON(in.Data); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
