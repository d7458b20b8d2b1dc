package optimizer

import "testing"

func TestEvalArithmetic(t *testing.T) {
	cases := map[string]float64{
		"1 + 2 * 3":  7,
		"(1 + 2) * 3": 9,
		"2 ** 10":    1024,
		"7 // 2":     3,
		"-7 // 2":    -4,
		"7 % 3":      1,
		"-1 % 3":     2,
	}
	for expr, want := range cases {
		v, err := Eval(expr)
		if err != nil {
			t.Fatalf("Eval(%q): %v", expr, err)
		}
		got, err := v.asFloat()
		if err != nil {
			t.Fatalf("Eval(%q) did not return a number: %v", expr, err)
		}
		if got != want {
			t.Errorf("Eval(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEvalComparisonsAndBooleans(t *testing.T) {
	cases := map[string]bool{
		"1 < 2":          true,
		"2 <= 2":         true,
		"3 == 3":         true,
		"3 != 4":         true,
		"true & false":   false,
		"true | false":   true,
		"true ^ true":    false,
		"not true":       false,
		"not (1 == 2)":   true,
	}
	for expr, want := range cases {
		v, err := Eval(expr)
		if err != nil {
			t.Fatalf("Eval(%q): %v", expr, err)
		}
		got, err := v.asBool()
		if err != nil {
			t.Fatalf("Eval(%q) did not return a boolean: %v", expr, err)
		}
		if got != want {
			t.Errorf("Eval(%q) = %v, want %v", expr, got, want)
		}
	}
}

func TestEvalUnaryOperators(t *testing.T) {
	v, err := Eval("-5")
	if err != nil || v.num != -5 {
		t.Fatalf("Eval(-5) = %v, %v", v, err)
	}
	v, err = Eval("~0")
	if err != nil || v.num != -1 {
		t.Fatalf("Eval(~0) = %v, %v", v, err)
	}
}

func TestEvalRejectsFreeVariables(t *testing.T) {
	if _, err := Eval("x + 1"); err == nil {
		t.Fatal("expected an error for a free variable")
	}
}

func TestEvalRejectsDivisionByZero(t *testing.T) {
	if _, err := Eval("1 / 0"); err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}

func TestIsConstantExpr(t *testing.T) {
	if !IsConstantExpr("1 + 1") {
		t.Error("1 + 1 should be constant")
	}
	if IsConstantExpr("x + 1") {
		t.Error("x + 1 should not be constant")
	}
	if IsConstantExpr("") {
		t.Error("empty expression should not be constant")
	}
}
