package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeIsMatchesSameCategoryAndValue(t *testing.T) {
	wrapped := fmt.Errorf("read failed: %w", ErrEndOfStream)
	if !errors.Is(wrapped, ErrEndOfStream) {
		t.Fatal("expected wrapped ErrEndOfStream to match itself")
	}
	if errors.Is(wrapped, ErrStreamReset) {
		t.Fatal("ErrEndOfStream should not match ErrStreamReset")
	}
}

func TestTransportErrorCodeEquality(t *testing.T) {
	a := NewTransportError(TransportProtocolViolation)
	b := NewTransportError(TransportProtocolViolation)
	if !errors.Is(a, b) {
		t.Fatal("two TransportErrorCode values with the same code should be equal via errors.Is")
	}
	c := NewTransportError(TransportNoError)
	if errors.Is(a, c) {
		t.Fatal("different transport codes should not match")
	}
}

func TestScenarioS6(t *testing.T) {
	mapped := MapCloseFrame(false, 0x0a)
	if !errors.Is(mapped, NewTransportError(TransportProtocolViolation)) {
		t.Fatalf("MapCloseFrame(0x0a) = %v, want protocol_violation", mapped)
	}
}

func TestMapCloseFrameApplicationError(t *testing.T) {
	mapped := MapCloseFrame(true, 0x5000)
	var appErr *ApplicationError
	if !errors.As(mapped, &appErr) {
		t.Fatalf("expected ApplicationError, got %T", mapped)
	}
	if appErr.Code != 0x5000 {
		t.Fatalf("appErr.Code = %#x, want 0x5000", appErr.Code)
	}
	if !errors.Is(mapped, TransportApplicationErrorCode()) {
		t.Fatal("ApplicationError should compare equal to TransportApplicationErrorCode()")
	}
}

func TestMapCloseFrameH3Range(t *testing.T) {
	mapped := MapCloseFrame(true, uint64(H3SettingsError))
	var h3err *H3Error
	if !errors.As(mapped, &h3err) || h3err.Code != H3SettingsError {
		t.Fatalf("expected H3Error(H3SettingsError), got %v", mapped)
	}
}
