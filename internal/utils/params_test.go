package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flowra-dev/flowra/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(target string, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, target, nil)
	ctx.Params = params
	return ctx, w
}

func TestGetUintParam(t *testing.T) {
	ctx, _ := testContext("/", gin.Param{Key: "team_id", Value: "42"})
	id, err := GetUintParam(ctx, "team_id")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"", "0", "-1", "abc", "99999999999"} {
		ctx, _ := testContext("/", gin.Param{Key: "team_id", Value: raw})
		_, err := GetUintParam(ctx, "team_id")

		var apiErr *types.APIError
		require.ErrorAs(t, err, &apiErr, raw)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	}
}

func TestGetTimeQuery(t *testing.T) {
	ctx, _ := testContext("/?from=2026-03-01T10:00:00%2B09:00&day=2026-03-02&bad=yesterday")

	from, err := GetTimeQuery(ctx, "from")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), *from)

	day, err := GetTimeQuery(ctx, "day")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *day)

	missing, err := GetTimeQuery(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = GetTimeQuery(ctx, "bad")
	assert.Error(t, err)
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
		err    bool
	}{
		{query: "", limit: 20, offset: 0},
		{query: "?limit=5&offset=10", limit: 5, offset: 10},
		{query: "?limit=500", limit: 100, offset: 0},
		{query: "?limit=0", err: true},
		{query: "?offset=-3", err: true},
		{query: "?limit=ten", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ctx, _ := testContext("/" + tt.query)
			limit, offset, err := Pagination(ctx, 20, 100)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestRespondErr(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{types.BadRequest("Title is required"), http.StatusBadRequest, "Title is required"},
		{types.ErrNotTeamMember, http.StatusForbidden, "You are not a member of this team"},
		{types.ErrInsufficientRole, http.StatusForbidden, "Insufficient permissions"},
		{types.ErrAlreadyRunning, http.StatusConflict, "Scheduler is already running"},
		{types.ErrNotFound, http.StatusNotFound, "Not found"},
	}

	for _, tt := range tests {
		ctx, w := testContext("/")
		RespondErr(ctx, tt.err)

		assert.Equal(t, tt.status, w.Code)
		assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, w.Body.String())
	}
}
