package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeValidation, "bad element %q", "el-1")
	if err.Code != ErrCodeValidation {
		t.Errorf("Code = %s, want %s", err.Code, ErrCodeValidation)
	}
	if !strings.Contains(err.Error(), "VALIDATION") {
		t.Errorf("Error() should contain code, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), `"el-1"`) {
		t.Errorf("Error() should contain formatted message, got %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeNetwork, cause, "fetch template %s", "tpl-1")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() should include cause, got %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeTimeout, "save exceeded budget")

	if !Is(err, ErrCodeTimeout) {
		t.Error("Is should match the error's own code")
	}
	if Is(err, ErrCodeNotFound) {
		t.Error("Is should not match a different code")
	}

	// Matching through wrapping layers.
	wrapped := fmt.Errorf("save: %w", err)
	if !Is(wrapped, ErrCodeTimeout) {
		t.Error("Is should unwrap to find the code")
	}

	if Is(stderrors.New("plain"), ErrCodeTimeout) {
		t.Error("Is should be false for non-structured errors")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodePartialSave, "x")); got != ErrCodePartialSave {
		t.Errorf("GetCode = %s, want %s", got, ErrCodePartialSave)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode for plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeProjectNotFound, "project p-1 does not exist")
	if msg := UserMessage(err); msg != "project p-1 does not exist" {
		t.Errorf("UserMessage = %q", msg)
	}
	if msg := UserMessage(stderrors.New("boom")); msg != "boom" {
		t.Errorf("UserMessage for plain error = %q", msg)
	}
}

func TestPartialSaveError(t *testing.T) {
	var pse PartialSaveError

	// No failures: OrNil returns nil.
	if pse.OrNil() != nil {
		t.Fatal("empty PartialSaveError should collapse to nil")
	}

	pse.Add("upsert:elements", nil) // ignored
	pse.Add("upsert:keyframes", stderrors.New("timeout"))
	pse.Add("delete:layers", stderrors.New("503"))

	err := pse.OrNil()
	if err == nil {
		t.Fatal("expected non-nil error after failures")
	}
	if len(pse.Steps) != 2 {
		t.Fatalf("Steps = %d, want 2 (nil errors ignored)", len(pse.Steps))
	}
	if !strings.Contains(err.Error(), "upsert:keyframes") || !strings.Contains(err.Error(), "delete:layers") {
		t.Errorf("Error() should list failed steps, got %q", err.Error())
	}

	var got *PartialSaveError
	if !stderrors.As(err, &got) {
		t.Error("errors.As should recover *PartialSaveError")
	}
}
