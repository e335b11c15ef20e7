package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorMappings(t *testing.T) {
	cases := []struct {
		err  error
		grpc codes.Code
		http int
	}{
		{NewAppError("RUN_NOT_FOUND", "run x", ErrNotFound), codes.NotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", ErrInvalidInput), codes.InvalidArgument, http.StatusBadRequest},
		{NewAppError("INVALID_RECORD", "bad", ErrValidation), codes.InvalidArgument, http.StatusBadRequest},
		{NewAppError("TESSERACT_NOT_FOUND", "missing", ErrOCRUnavailable), codes.Unavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), codes.Internal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := status.Code(ToStatus(tc.err)); got != tc.grpc {
			t.Errorf("ToStatus(%v) = %v, want %v", tc.err, got, tc.grpc)
		}
		if got := HTTPStatus(tc.err); got != tc.http {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.http)
		}
	}
	if ToStatus(nil) != nil {
		t.Error("ToStatus(nil) should be nil")
	}
}
