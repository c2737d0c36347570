package validate

import "testing"

func TestValidateString_RejectsTooLong(t *testing.T) {
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	ok, _, msg := ValidateString(string(long), "reason", false)
	if ok {
		t.Fatalf("expected rejection for too-long reason, got ok with msg %q", msg)
	}
}

func TestValidateString_RejectsEmptyUnlessAllowed(t *testing.T) {
	ok, _, _ := ValidateString("", "message", false)
	if ok {
		t.Fatal("expected rejection for empty value")
	}
	ok, _, _ = ValidateString("", "message", true)
	if !ok {
		t.Fatal("expected empty value to be allowed")
	}
}

func TestValidateString_RejectsDangerousPatterns(t *testing.T) {
	cases := []string{
		"<script>alert(1)</script>",
		"javascript:alert(1)",
		"onclick=\"evil()\"",
		"eval(foo)",
		"exec(bar)",
		"__import__('os')",
		"; drop table users",
		"union select * from users",
		"admin'--",
		"' or '1'='1",
	}
	for _, c := range cases {
		ok, _, msg := ValidateString(c, "message", false)
		if ok {
			t.Errorf("expected %q to be rejected, got ok", c)
		}
		if msg == "" {
			t.Errorf("expected error message for %q", c)
		}
	}
}

func TestValidateString_AcceptsOrdinaryText(t *testing.T) {
	ok, cleaned, msg := ValidateString("  hello world  ", "message", false)
	if !ok {
		t.Fatalf("expected ok, got rejection: %s", msg)
	}
	if cleaned != "hello world" {
		t.Fatalf("expected trimmed value, got %q", cleaned)
	}
}

func TestValidateInteger_Bounds(t *testing.T) {
	if ok, _, _ := ValidateInteger(5, true, 1, true, 10); !ok {
		t.Fatal("expected 5 in [1,10] to be valid")
	}
	if ok, _, _ := ValidateInteger(0, true, 1, true, 10); ok {
		t.Fatal("expected 0 below min to be rejected")
	}
	if ok, _, _ := ValidateInteger(11, true, 1, true, 10); ok {
		t.Fatal("expected 11 above max to be rejected")
	}
}

func TestValidateSnowflake(t *testing.T) {
	cases := map[string]bool{
		"123456789012345678": true,
		"12345":               false,
		"abc456789012345678": false,
		"123456789012345678901": false,
	}
	for in, want := range cases {
		ok, _, _ := ValidateSnowflake(in)
		if ok != want {
			t.Errorf("ValidateSnowflake(%q) = %v, want %v", in, ok, want)
		}
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{"http://example.com/path", "https://example.com"}
	for _, u := range valid {
		if ok, _, msg := ValidateURL(u); !ok {
			t.Errorf("expected %q valid, got rejection: %s", u, msg)
		}
	}

	invalid := []string{
		"javascript:alert(1)",
		"data:text/html,<script>alert(1)</script>",
		"vbscript:msgbox(1)",
		"ftp://example.com",
		"not a url",
	}
	for _, u := range invalid {
		if ok, _, _ := ValidateURL(u); ok {
			t.Errorf("expected %q invalid", u)
		}
	}
}

func TestSanitizeForDisplay(t *testing.T) {
	in := "*bold* _italic_ ​zero‌width"
	out := SanitizeForDisplay(in)
	if out == in {
		t.Fatal("expected sanitization to change input")
	}
	want := "\\*bold\\* \\_italic\\_ zerowidth"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}
