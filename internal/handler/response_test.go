package handler

import (
	"net/http"
	"testing"

	"github.com/hitoshi/calmirror/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"検証エラー", model.NewValidationError("bad input"), http.StatusBadRequest},
		{"認証エラー", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"未知のチャネル", model.NewUnknownChannelError("ch-x"), http.StatusNotFound},
		{"リソース不一致", model.NewStaleResourceError(), http.StatusBadRequest},
		{"watch未購読", model.NewNoActiveWatchError(), http.StatusBadRequest},
		{"未分類のコード", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}
