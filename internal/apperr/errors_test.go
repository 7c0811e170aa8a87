package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	appErr := New(ErrCodeFileNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, appErr)
	assert.Equal(t, originalErr, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, originalErr))
}

func TestAppError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"config", ErrCodeConfigNotFound, "config missing", "[ERR_101_CONFIG_NOT_FOUND] config missing"},
		{"file", ErrCodeFileNotFound, "notes.txt not found", "[ERR_201_FILE_NOT_FOUND] notes.txt not found"},
		{"network", ErrCodeNetworkTimeout, "timed out", "[ERR_301_NETWORK_TIMEOUT] timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)
	assert.True(t, errors.Is(err1, err2))
}

func TestAppError_Is_DifferentCodesDoNotMatch(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)
	assert.False(t, errors.Is(err1, err2))
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil).WithDetail("path", "/tmp/x")
	assert.Equal(t, "/tmp/x", err.Details["path"])
}

func TestAppError_WithSuggestion(t *testing.T) {
	err := New(ErrCodeNetworkTimeout, "connection timed out", nil).WithSuggestion("check the vector store is running")
	assert.Equal(t, "check the vector store is running", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeFilePermission, CategoryIO},
		{ErrCodeNetworkTimeout, CategoryNetwork},
		{ErrCodeVectorStoreFailure, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeTopKTooLarge, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeIndexFailed, CategoryInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, categoryFromCode(tt.code), tt.code)
	}
}

func TestSeverityFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Severity
	}{
		{ErrCodeCollectionMisconfig, SeverityFatal},
		{ErrCodeDimensionMismatch, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeNetworkTimeout, SeverityWarning},
		{ErrCodeVectorStoreFailure, SeverityWarning},
		{ErrCodeParseFailure, SeverityWarning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, severityFromCode(tt.code), tt.code)
	}
}

func TestIsRetryableCode(t *testing.T) {
	tests := []struct {
		code     string
		expected bool
	}{
		{ErrCodeNetworkTimeout, true},
		{ErrCodeVectorStoreFailure, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCollectionMisconfig, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isRetryableCode(tt.code), tt.code)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("boom")
	appErr := Wrap(ErrCodeInternal, originalErr)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.Equal(t, "boom", appErr.Message)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable", New(ErrCodeNetworkTimeout, "timeout", nil), true},
		{"not retryable", New(ErrCodeFileNotFound, "not found", nil), false},
		{"wrapped retryable", Wrap(ErrCodeVectorStoreFailure, errors.New("wrapped")), true},
		{"plain error", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"fatal", New(ErrCodeCollectionMisconfig, "collection misconfigured", nil), true},
		{"fatal dimension", New(ErrCodeDimensionMismatch, "dimension mismatch", nil), true},
		{"not fatal", New(ErrCodeFileNotFound, "not found", nil), false},
		{"plain error", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", New(ErrCodeInvalidInput, "bad input", nil), 400},
		{"not found", NotFoundError("/tmp/x", nil), 404},
		{"internal", New(ErrCodeInternal, "boom", nil), 500},
		{"plain error", errors.New("plain"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
