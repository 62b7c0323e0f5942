package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCategoryStore, CodeWriteFailed, "write failed")
	expected := "[STORE:WRITE_FAILED] write failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_ErrorWithDetailsAndCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCategoryStore, CodeWriteFailed, "write failed", cause).
		WithDetails(map[string]interface{}{DetailStage: "snapshot", DetailRunDate: "2024-10-01"})
	expected := "[STORE:WRITE_FAILED] write failed (run_date=2024-10-01, stage=snapshot): disk full"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryLedger, CodeLedgerCorrupt, "corrupt", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPipelineError_Is(t *testing.T) {
	err1 := New(ErrCategoryStore, CodeNotFound, "first")
	err2 := New(ErrCategoryStore, CodeNotFound, "second")
	err3 := New(ErrCategoryStore, CodeWriteFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}

	wrapped := fmt.Errorf("stage diff: %w", NewNotFoundError("source.teams_2024_10_01"))
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt wrapping")
	}
	if !errors.Is(NewInvalidRecordError("bad key", nil), ErrInvalidRecord) {
		t.Error("invalid record should match the sentinel")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryFetch, CodeUpstreamStatus, true},
		{ErrCategoryFetch, CodeUpstreamUnreachable, true},
		{ErrCategoryFetch, CodeUpstreamDecode, false},
		{ErrCategoryStore, CodeWriteFailed, true},
		{ErrCategoryStore, CodeReadFailed, true},
		{ErrCategoryStore, CodeVerifyFailed, true},
		{ErrCategoryStore, CodeNotFound, false},
		{ErrCategoryLedger, CodeLedgerCorrupt, false},
		{ErrCategoryValidation, CodeInvalidRecord, false},
		{ErrCategoryValidation, CodeInvalidConfig, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors are not retryable")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewFetchError(503, "en/team"))
	if GetCategory(err) != ErrCategoryFetch {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryFetch)
	}
	if GetCode(err) != CodeUpstreamStatus {
		t.Errorf("got %q, want %q", GetCode(err), CodeUpstreamStatus)
	}
	if GetDetails(err)[DetailStatus] != 503 {
		t.Errorf("status detail missing: %v", GetDetails(err))
	}
	if GetCategory(fmt.Errorf("plain error")) != "" || GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-PipelineError should return empty category and code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidRecord, "bad row")
	detailed := err.WithDetails(map[string]interface{}{DetailDataset: "source.teams"})
	again := detailed.WithDetails(map[string]interface{}{DetailStage: "resolve"})

	if again.Details[DetailDataset] != "source.teams" || again.Details[DetailStage] != "resolve" {
		t.Error("WithDetails should merge details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
	if _, ok := detailed.Details[DetailStage]; ok {
		t.Error("WithDetails should not modify the receiver's details")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	if e := NewUnreachableError("en/team", cause); e.Category != ErrCategoryFetch || !errors.Is(e, cause) {
		t.Error("NewUnreachableError mismatch")
	}
	if e := NewStoreWriteError("staging.teams", cause); !errors.Is(e, ErrStoreWrite) || e.Details[DetailTable] != "staging.teams" {
		t.Error("NewStoreWriteError mismatch")
	}
	if e := NewStoreReadError("staging.teams", cause); e.Code != CodeReadFailed {
		t.Error("NewStoreReadError mismatch")
	}
	if e := NewVerifyError("detailed.hub_teams", 3, 2); !errors.Is(e, ErrVerify) {
		t.Error("NewVerifyError mismatch")
	}
	if e := NewInternalError("unexpected", cause); e.Category != ErrCategoryInternal || e.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
