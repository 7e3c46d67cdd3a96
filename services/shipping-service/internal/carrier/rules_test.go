package carrier

import "testing"

func TestSelectRuleTable(t *testing.T) {
	cases := []struct {
		name      string
		amount    float64
		itemCount int
		want      string
	}{
		{"high value", 750.00, 2, FedEx},
		{"high value wins over bulk", 501.00, 20, FedEx},
		{"bulky", 120.00, 11, UPS},
		{"small", 19.99, 1, USPS},
		{"mid range", 200.00, 3, DHL},
		{"boundary amount 500", 500.00, 3, DHL},
		{"boundary count 10", 100.00, 10, DHL},
		{"boundary amount 50", 50.00, 1, DHL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Select(tc.amount, tc.itemCount)
			if got.Carrier != tc.want {
				t.Fatalf("Select(%.2f, %d) = %s, want %s", tc.amount, tc.itemCount, got.Carrier, tc.want)
			}
			if got.ETADays <= 0 {
				t.Fatalf("Select(%.2f, %d) eta = %d, want positive", tc.amount, tc.itemCount, got.ETADays)
			}
		})
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	first := Select(200, 3)
	for i := 0; i < 100; i++ {
		if got := Select(200, 3); got != first {
			t.Fatalf("selection changed between calls: %+v vs %+v", first, got)
		}
	}
}
