package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/pickleball-platform/services"
)

// Статусы по группам: не-найдено 404, конфликты состояния 409 (включая
// протухшее приглашение - оно сгорает, как и использованное), валидация
// 422, доступ 403, аутентификация 401.
func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrTeamNotFound, http.StatusNotFound},
		{services.ErrChatRoomNotFound, http.StatusNotFound},
		{services.ErrEventFull, http.StatusConflict},
		{services.ErrAlreadyReserved, http.StatusConflict},
		{services.ErrInviteUsed, http.StatusConflict},
		{services.ErrInviteExpired, http.StatusConflict},
		{services.ErrEventLocked, http.StatusConflict},
		{services.ErrAuthEmailTaken, http.StatusConflict},
		{services.ErrValidationFailed, http.StatusUnprocessableEntity},
		{services.ErrPasswordTooShort, http.StatusUnprocessableEntity},
		{services.ErrInvalidJoinRequestAction, http.StatusUnprocessableEntity},
		{services.ErrManagerActionForbidden, http.StatusForbidden},
		{services.ErrNotRoomMember, http.StatusForbidden},
		{services.ErrAuthInvalidCredentials, http.StatusUnauthorized},
		{services.ErrInvalidProviderToken, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			mapServiceErrorToHTTP(rec, req, fmt.Errorf("handler: %w", tc.err))

			if rec.Code != tc.want {
				t.Fatalf("status for %v = %d, want %d", tc.err, rec.Code, tc.want)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if _, ok := body["error"]; !ok {
				t.Fatalf("response has no error field: %s", rec.Body.String())
			}
		})
	}
}
