package validate

import "testing"

func TestIsAddress(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "lowercase address", input: "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae", expected: true},
		{name: "checksummed address", input: "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe", expected: true},
		{name: "bad checksum", input: "0xDE0B295669a9fd93d5f28d9ec85e40f4cb697bae", expected: false},
		{name: "uppercase hex part", input: "0xDE0B295669A9FD93D5F28D9EC85E40F4CB697BAE", expected: false},
		{name: "missing prefix", input: "de0b295669a9fd93d5f28d9ec85e40f4cb697bae", expected: true},
		{name: "too short", input: "0xde0b295669a9fd93d5f28d9ec85e40f4cb697ba", expected: false},
		{name: "too long", input: "0xde0b295669a9fd93d5f28d9ec85e40f4cb697bae00", expected: false},
		{name: "non-hex characters", input: "0xzz0b295669a9fd93d5f28d9ec85e40f4cb697bae", expected: false},
		{name: "empty", input: "", expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsAddress(tc.input); actual != tc.expected {
				t.Errorf("IsAddress(%q) = %t, expected %t", tc.input, actual, tc.expected)
			}
		})
	}
}

func TestIsAmount(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "integer", input: "5", expected: true},
		{name: "decimal", input: "0.5", expected: true},
		{name: "eighteen fraction digits", input: "1.000000000000000001", expected: true},
		{name: "nineteen fraction digits", input: "1.0000000000000000001", expected: false},
		{name: "zero", input: "0", expected: false},
		{name: "zero decimal", input: "0.000", expected: false},
		{name: "leading zero", input: "01", expected: false},
		{name: "negative", input: "-1", expected: false},
		{name: "trailing dot", input: "1.", expected: false},
		{name: "leading dot", input: ".5", expected: false},
		{name: "exponent", input: "1e18", expected: false},
		{name: "empty", input: "", expected: false},
		{name: "spaces", input: " 1", expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsAmount(tc.input); actual != tc.expected {
				t.Errorf("IsAmount(%q) = %t, expected %t", tc.input, actual, tc.expected)
			}
		})
	}
}

func TestIsPrivateKey(t *testing.T) {
	key64 := "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	testCases := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "bare hex", input: key64, expected: true},
		{name: "with prefix", input: "0x" + key64, expected: true},
		{name: "uppercase", input: "0X" + key64, expected: true},
		{name: "too short", input: key64[:63], expected: false},
		{name: "too long", input: key64 + "a", expected: false},
		{name: "non-hex", input: "zz" + key64[2:], expected: false},
		{name: "empty", input: "", expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsPrivateKey(tc.input); actual != tc.expected {
				t.Errorf("IsPrivateKey(%q) = %t, expected %t", tc.input, actual, tc.expected)
			}
		})
	}
}

func TestIsSlippagePercent(t *testing.T) {
	testCases := []struct {
		name     string
		input    float64
		expected bool
	}{
		{name: "typical", input: 1.5, expected: true},
		{name: "upper bound", input: 50, expected: true},
		{name: "above upper bound", input: 50.1, expected: false},
		{name: "zero", input: 0, expected: false},
		{name: "negative", input: -1, expected: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsSlippagePercent(tc.input); actual != tc.expected {
				t.Errorf("IsSlippagePercent(%v) = %t, expected %t", tc.input, actual, tc.expected)
			}
		})
	}
}

func TestIsGasPriority(t *testing.T) {
	for _, valid := range []string{"low", "medium", "high"} {
		if !IsGasPriority(valid) {
			t.Errorf("IsGasPriority(%q) = false, expected true", valid)
		}
	}

	for _, invalid := range []string{"", "urgent", "LOW", "Medium"} {
		if IsGasPriority(invalid) {
			t.Errorf("IsGasPriority(%q) = true, expected false", invalid)
		}
	}
}
