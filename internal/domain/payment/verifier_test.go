package payment

import "testing"

func TestVerifyKnownSignature(t *testing.T) {
	v := NewSignatureVerifier("testkey")

	// sha512("PAY-1" + "200" + "150000.00" + "testkey")
	sig := "b390cb910fc2fcad37aa751073d4657ecbbfe7de97d3755e484a68e98f65e66c355000562825ddb019b7bb055603819ab5d9003fc6870dd80d2a549d76c4e0e6"

	if !v.Verify("PAY-1", "200", "150000.00", sig) {
		t.Error("expected known signature to verify")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	v := NewSignatureVerifier("SB-Mid-server-key")
	sig := v.Expected("PAY-99", "201", "75000.00")

	if !v.Verify("PAY-99", "201", "75000.00", sig) {
		t.Error("expected computed signature to verify")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	v := NewSignatureVerifier("testkey")
	sig := v.Expected("PAY-1", "200", "150000.00")

	cases := []struct {
		name                             string
		orderID, statusCode, grossAmount string
	}{
		{"wrong order", "PAY-2", "200", "150000.00"},
		{"wrong status code", "PAY-1", "201", "150000.00"},
		{"wrong amount", "PAY-1", "200", "999999.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(tc.orderID, tc.statusCode, tc.grossAmount, sig) {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sig := NewSignatureVerifier("key-a").Expected("PAY-1", "200", "100.00")
	if NewSignatureVerifier("key-b").Verify("PAY-1", "200", "100.00", sig) {
		t.Error("expected signature made with another key to fail")
	}
}

func TestVerifyRejectsMissingFields(t *testing.T) {
	v := NewSignatureVerifier("testkey")
	sig := v.Expected("PAY-1", "200", "100.00")

	if v.Verify("", "200", "100.00", sig) {
		t.Error("expected empty order_id to fail")
	}
	if v.Verify("PAY-1", "", "100.00", sig) {
		t.Error("expected empty status_code to fail")
	}
	if v.Verify("PAY-1", "200", "100.00", "") {
		t.Error("expected empty signature to fail")
	}
}
