package models

import (
	"errors"
	"testing"

	"github.com/starlitlog/dr-web-engine/query"
)

func TestErrorDetailFromErr_PreservesEvalErrorCode(t *testing.T) {
	d := ErrorDetailFromErr(&query.EvalError{Code: query.ErrTargetNotFound, Message: "no match"})
	if d.Code != query.ErrTargetNotFound || d.Message != "no match" {
		t.Fatalf("unexpected detail: %+v", d)
	}
}

func TestErrorDetailFromErr_WrapsPlainError(t *testing.T) {
	d := ErrorDetailFromErr(errors.New("boom"))
	if d.Code != ErrCodeInternal || d.Message != "boom" {
		t.Fatalf("unexpected detail: %+v", d)
	}
}
