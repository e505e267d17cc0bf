package job

import (
	"encoding/json"
	"testing"
)

func TestPriorityRank(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityMedium.Rank() && PriorityMedium.Rank() > PriorityLow.Rank()) {
		t.Fatal("priority ranks out of order")
	}
	if Priority("garbage").Rank() != PriorityLow.Rank() {
		t.Fatal("unknown priority should rank with low")
	}
}

func TestOptionsHumanDefault(t *testing.T) {
	var opts Options
	if !opts.Human() {
		t.Fatal("simulation should default to on")
	}

	off := false
	opts.SimulateHuman = &off
	if opts.Human() {
		t.Fatal("explicit false ignored")
	}

	// An absent JSON field must stay distinguishable from explicit false.
	var fromEmpty Options
	if err := json.Unmarshal([]byte(`{}`), &fromEmpty); err != nil {
		t.Fatal(err)
	}
	if !fromEmpty.Human() {
		t.Fatal("absent field treated as false")
	}
	var fromFalse Options
	if err := json.Unmarshal([]byte(`{"simulate_human": false}`), &fromFalse); err != nil {
		t.Fatal(err)
	}
	if fromFalse.Human() {
		t.Fatal("explicit false lost in decoding")
	}
}
