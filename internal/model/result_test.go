package model

import (
	"errors"
	"testing"
)

// TestDecodeResult tests every response shape a list endpoint can return.
func TestDecodeResult(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		body       string
		wantKind   Kind
		wantItems  int
		wantStatus string
		wantErr    bool
	}{
		{"list", `[{"id":1,"name":"a"},{"id":2,"name":"b"}]`, KindList, 2, "", false},
		{"empty list", `[]`, KindList, 0, "", false},
		{"empty body", ``, KindEmpty, 0, "", false},
		{"whitespace body", "  \n", KindEmpty, 0, "", false},
		{"null", `null`, KindEmpty, 0, "", false},
		{"status", `{"status":"unauthorized"}`, KindStatus, 0, "unauthorized", false},
		{"errors list", `{"errors":[{"message":"The specified resource does not exist."}]}`, KindStatus, 0, "The specified resource does not exist.", false},
		{"object without status", `{"id":1}`, KindEmpty, 0, "", true},
		{"scalar", `42`, KindEmpty, 0, "", true},
		{"broken list", `[{"id":"x"}]`, KindEmpty, 0, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeResult[User]([]byte(tc.body))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("DecodeResult(%q) expected error, got %+v", tc.body, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeResult(%q) error = %v", tc.body, err)
			}
			if got.Kind != tc.wantKind {
				t.Errorf("Kind = %v, expected %v", got.Kind, tc.wantKind)
			}
			if len(got.Items) != tc.wantItems {
				t.Errorf("len(Items) = %d, expected %d", len(got.Items), tc.wantItems)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("Status = %q, expected %q", got.Status, tc.wantStatus)
			}
		})
	}
}

// TestDecodeResultUnexpectedShape tests that shape errors are identifiable.
func TestDecodeResultUnexpectedShape(t *testing.T) {
	t.Parallel()

	_, err := DecodeResult[Folder]([]byte(`"hello"`))
	if !errors.Is(err, ErrUnexpectedShape) {
		t.Errorf("error = %v, expected %v", err, ErrUnexpectedShape)
	}
}

// TestDecodeObject tests every response shape a single-resource endpoint can return.
func TestDecodeObject(t *testing.T) {
	t.Parallel()

	t.Run("object", func(t *testing.T) {
		t.Parallel()
		got, err := DecodeObject[PageBody]([]byte(`{"page_id":3,"url":"intro","title":"Intro","body":"<p>hi</p>","updated_at":"2024-01-01T00:00:00Z","locked_for_user":false}`))
		if err != nil {
			t.Fatalf("DecodeObject() error = %v", err)
		}
		if got.Kind != KindObject {
			t.Fatalf("Kind = %v, expected %v", got.Kind, KindObject)
		}
		if got.Value.Body != "<p>hi</p>" {
			t.Errorf("Body = %q", got.Value.Body)
		}
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		got, err := DecodeObject[PageBody]([]byte(`{"status":"unauthorized"}`))
		if err != nil {
			t.Fatalf("DecodeObject() error = %v", err)
		}
		if !got.Absent() {
			t.Errorf("Absent() = false for %+v", got)
		}
	})

	t.Run("list is rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := DecodeObject[PageBody]([]byte(`[]`)); !errors.Is(err, ErrUnexpectedShape) {
			t.Errorf("error = %v, expected %v", err, ErrUnexpectedShape)
		}
	})
}

// TestResultAbsent tests which results count as a missing resource.
func TestResultAbsent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		result   Result[User]
		expected bool
	}{
		{Result[User]{Kind: KindEmpty}, true},
		{Result[User]{Kind: KindStatus, Status: "unauthorized"}, true},
		{Result[User]{Kind: KindStatus, Status: "not found"}, false},
		{Result[User]{Kind: KindList}, false},
	}

	for _, tc := range testCases {
		if got := tc.result.Absent(); got != tc.expected {
			t.Errorf("Absent(%+v) = %v, expected %v", tc.result, got, tc.expected)
		}
	}
}

// TestKindString tests the String method of Kind.
func TestKindString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		kind     Kind
		expected string
	}{
		{KindEmpty, "empty"},
		{KindList, "list"},
		{KindObject, "object"},
		{KindStatus, "status"},
		{Kind(9), "kind(9)"},
	}
	for _, tc := range testCases {
		if tc.kind.String() != tc.expected {
			t.Errorf("got %q, expected %q", tc.kind.String(), tc.expected)
		}
	}
}
