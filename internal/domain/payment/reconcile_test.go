package payment

import "testing"

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		txStatus, fraudStatus string
		want                  Status
	}{
		{"capture", "accept", StatusPaid},
		{"capture", "challenge", StatusPending},
		{"capture", "", StatusPending},
		{"settlement", "", StatusPaid},
		{"settlement", "accept", StatusPaid},
		{"cancel", "", StatusFailed},
		{"deny", "", StatusFailed},
		{"expire", "", StatusFailed},
		{"pending", "", StatusPending},
		{"refund", "", StatusPending}, // unknown statuses stay pending
		{"", "", StatusPending},
	}
	for _, tc := range cases {
		if got := MapGatewayStatus(tc.txStatus, tc.fraudStatus); got != tc.want {
			t.Errorf("MapGatewayStatus(%q, %q) = %s, want %s", tc.txStatus, tc.fraudStatus, got, tc.want)
		}
	}
}

func TestStatusRankOrdering(t *testing.T) {
	if !(StatusPending.Rank() < StatusFailed.Rank() && StatusFailed.Rank() < StatusPaid.Rank()) {
		t.Error("expected pending < failed < paid")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPaid, StatusFailed} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("refunded").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}
