package session

import "testing"

func TestValidateName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "main", false},
		{"with dash", "work-account", false},
		{"with underscore", "alt_1", false},
		{"digits", "0099", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"spaces", "my session", true},
		{"path traversal", "../etc", true},
		{"slash", "a/b", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateName(tc.input)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateName(%q) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
		})
	}
}
