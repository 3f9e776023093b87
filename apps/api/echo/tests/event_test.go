package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventBody(t *testing.T, title string, date time.Time, extra map[string]interface{}) []byte {
	body := map[string]interface{}{
		"title":       title,
		"description": "Cupping and tasting session",
		"date":        date.Format("2006-01-02"),
		"time":        "10:00 AM",
		"location":    "Kathmandu",
		"type":        "Workshop",
		"organizer":   "NCPA",
		"agenda":      []string{"Welcome", "<b>Cupping</b>"},
	}
	for k, v := range extra {
		body[k] = v
	}
	return marchallObj(t, body)
}

func Test_eventApi(t *testing.T) {
	a := setup(t)
	_, ownerToken := a.createUser(t, "Owner", "owner@test.com")
	_, otherToken := a.createUser(t, "Other", "other@test.com")
	nextMonth := time.Now().AddDate(0, 1, 0)

	rec := a.do(http.MethodPost, "/events", "", newEventBody(t, "Cupping", nextMonth, nil))
	checkErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = a.do(http.MethodPost, "/events", ownerToken, newEventBody(t, "Cupping", nextMonth, map[string]interface{}{"type": "Party"}))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	for _, field := range []string{"title", "time", "location", "organizer"} {
		rec = a.do(http.MethodPost, "/events", ownerToken, newEventBody(t, "Cupping", nextMonth, map[string]interface{}{field: "   "}))
		checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		assert.Contains(t, decode(t, rec)["fields"], field)
	}

	rec = a.do(http.MethodPost, "/events", ownerToken, newEventBody(t, "Cupping", nextMonth, map[string]interface{}{"maxAttendees": 1}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	evt := decode(t, rec)
	id := evt["id"].(string)
	assert.Equal(t, true, evt["active"])
	assert.EqualValues(t, 0, evt["attendees"])
	assert.Equal(t, []interface{}{"Welcome", "Cupping"}, evt["agenda"])

	rec = a.do(http.MethodPost, "/events", ownerToken, newEventBody(t, "Harvest festival", nextMonth.AddDate(0, 1, 0), map[string]interface{}{"type": "Festival"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// public listing, soonest first
	rec = a.do(http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode(t, rec)["events"].([]interface{})
	require.Len(t, events, 2)
	assert.Equal(t, id, events[0].(map[string]interface{})["id"])

	rec = a.do(http.MethodGet, "/events?type=Festival", "")
	assert.Len(t, decode(t, rec)["events"], 1)

	rec = a.do(http.MethodGet, "/events?location=kathm", "")
	assert.Len(t, decode(t, rec)["events"], 2)

	tests := []httpTest{
		{
			name:     "only the creator may update",
			method:   http.MethodPut,
			path:     "/events/" + id,
			token:    otherToken,
			body:     []byte(`{"title":"Mine now"}`),
			wantCode: http.StatusForbidden,
			wantData: []byte(`{"error":"UNAUTHORIZED","code":"UNAUTHORIZED","message":"You can only modify events you created."}`),
		},
		{
			name:     "only the creator may delete",
			method:   http.MethodDelete,
			path:     "/events/" + id,
			token:    otherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "bad date",
			method:   http.MethodPut,
			path:     "/events/" + id,
			token:    ownerToken,
			body:     []byte(`{"date":"next tuesday"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "invalid id",
			method:   http.MethodGet,
			path:     "/events/xyz",
			wantCode: http.StatusBadRequest,
		},
	}
	runTests(t, a, tests)

	rec = a.do(http.MethodPut, "/events/"+id, ownerToken, []byte(`{"title":"Cupping <i>101</i>"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cupping 101", decode(t, rec)["title"])

	// registration
	rec = a.do(http.MethodPost, "/events/"+id+"/register", "")
	checkErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = a.do(http.MethodPost, "/events/"+id+"/register", otherToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "Successfully registered for event", data["message"])
	assert.EqualValues(t, 1, data["event"].(map[string]interface{})["attendees"])

	rec = a.do(http.MethodPost, "/events/"+id+"/register", ownerToken)
	checkErrorCode(t, rec, http.StatusBadRequest, "EVENT_FULL")

	// deleting hides the event from listings only
	rec = a.do(http.MethodDelete, "/events/"+id, ownerToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message":"Event deleted successfully"}`)}, rec)

	rec = a.do(http.MethodGet, "/events", "")
	assert.Len(t, decode(t, rec)["events"], 1)

	rec = a.do(http.MethodGet, "/events/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = a.do(http.MethodPost, "/events/"+id+"/register", otherToken)
	checkErrorCode(t, rec, http.StatusNotFound, "EVENT_NOT_FOUND")
}

func Test_eventApi_past(t *testing.T) {
	a := setup(t)
	_, token := a.createUser(t, "Owner", "owner@test.com")

	rec := a.do(http.MethodPost, "/events", token, newEventBody(t, "Last year", time.Now().AddDate(-1, 0, 0), nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)

	rec = a.do(http.MethodGet, "/events", "")
	assert.Empty(t, decode(t, rec)["events"])

	rec = a.do(http.MethodGet, "/events?upcoming=false", "")
	assert.Len(t, decode(t, rec)["events"], 1)

	rec = a.do(http.MethodPost, "/events/"+id+"/register", token)
	checkErrorCode(t, rec, http.StatusBadRequest, "EVENT_PAST")
}
