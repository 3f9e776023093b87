package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/core/user"
	testutil "github.com/coffeehubnepal/api/tests"
)

func Test_blogApi(t *testing.T) {
	a := setup(t)
	author, authorToken := a.createUser(t, "Sunita", "sunita@test.com")
	_, otherToken := a.createUser(t, "Other", "other@test.com")
	_, modToken := a.createUser(t, "Mod", "mod@test.com", testutil.WithRole(user.RoleModerator))

	rec := a.do(http.MethodPost, "/blog", authorToken, []byte(`{
		"title": "Shade <b>grown</b> coffee",
		"content": "<p>Shade helps.</p><script>alert(1)</script>",
		"category": "farming",
		"tags": ["shade", "organic"]
	}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	post := decode(t, rec)
	id := post["id"].(string)
	assert.Equal(t, "Shade grown coffee", post["title"])
	assert.Equal(t, "<p>Shade helps.</p>", post["content"])
	assert.Equal(t, author.ID, post["author"])
	assert.Equal(t, "Sunita", post["authorName"])

	rec = a.do(http.MethodPost, "/blog", otherToken, []byte(`{"title":"Market update","content":"Prices are up","category":"market","tags":["prices"]}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/blog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	assert.Len(t, decode(t, rec)["posts"], 2)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"by category", "?category=farming", 1},
		{"by tags", "?tags=shade,organic", 1},
		{"by missing tag", "?tags=shade,prices", 0},
		{"search", "?search=PRICES", 1},
		{"by author", "?author=" + author.ID, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodGet, "/blog"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, decode(t, rec)["posts"], tt.want)
		})
	}

	rec = a.do(http.MethodGet, "/blog?author=me", "")
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_ID")

	rec = a.do(http.MethodPut, "/blog/"+id, otherToken, []byte(`{"title":"Hijacked"}`))
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")

	rec = a.do(http.MethodPut, "/blog/"+id, authorToken, []byte(`{"tags":["shade"]}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{"shade"}, decode(t, rec)["tags"])

	// staff may moderate any post
	rec = a.do(http.MethodPut, "/blog/"+id, modToken, []byte(`{"title":"Shade grown coffee (edited)"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/blog/"+id+"/report", otherToken, []byte(`{"type":"rude"}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodPost, "/blog/5f2b3c4d5e6f708192a3b4c5/report", otherToken, []byte(`{"type":"spam"}`))
	checkErrorCode(t, rec, http.StatusNotFound, "POST_NOT_FOUND")

	rec = a.do(http.MethodPost, "/blog/"+id+"/report", otherToken, []byte(`{"type":"misinformation","reason":"not true"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "Report submitted. Thank you for helping keep the community safe.", data["message"])
	assert.Equal(t, "pending", data["report"].(map[string]interface{})["status"])

	rec = a.do(http.MethodDelete, "/blog/"+id, otherToken)
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")

	rec = a.do(http.MethodDelete, "/blog/"+id, authorToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message":"Post deleted successfully"}`)}, rec)

	rec = a.do(http.MethodGet, "/blog/"+id, "")
	checkErrorCode(t, rec, http.StatusNotFound, "POST_NOT_FOUND")
}

func Test_blogApi_notices(t *testing.T) {
	a := setup(t)
	_, adminToken := a.createUser(t, "Admin", "admin@test.com", testutil.WithRole(user.RoleAdmin))
	_, farmerToken := a.createUser(t, "Farmer", "farmer@test.com")

	for _, body := range []string{
		`{"title":"Subsidy deadline","body":"Apply at the ward office","type":"Govt","priority":"High","deadline":"2030-01-31"}`,
		`{"title":"Leaf rust alert","body":"Inspect your plants"}`,
	} {
		rec := a.do(http.MethodPost, "/admin/notices", adminToken, []byte(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := a.do(http.MethodPost, "/blog", adminToken, []byte(`{"title":"Not a notice","content":"regular post"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	// only staff may publish notices, whether through /admin/notices or a notice shaped post
	forged := []string{
		`{"title":"Fake subsidy","content":"Send money","category":"notice","tags":["notice","type:Govt","priority:High"]}`,
		`{"title":"Fake subsidy","content":"Send money","category":"Notice"}`,
		`{"title":"Fake subsidy","content":"Send money","tags":["priority:High"]}`,
	}
	for _, body := range forged {
		rec = a.do(http.MethodPost, "/blog", farmerToken, []byte(body))
		checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")
	}

	rec = a.do(http.MethodPost, "/blog", farmerToken, []byte(`{"title":"My harvest","content":"Good year"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ownID := decode(t, rec)["id"].(string)
	rec = a.do(http.MethodPut, "/blog/"+ownID, farmerToken, []byte(`{"category":"notice","tags":["notice","type:Govt"]}`))
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")
	rec = a.do(http.MethodGet, "/blog/"+ownID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["category"])

	rec = a.do(http.MethodGet, "/blog/notices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	notices := decode(t, rec)["notices"].([]interface{})
	require.Len(t, notices, 2)

	byTitle := make(map[string]map[string]interface{})
	for _, n := range notices {
		n := n.(map[string]interface{})
		byTitle[n["title"].(string)] = n
	}
	assert.Equal(t, "Govt", byTitle["Subsidy deadline"]["type"])
	assert.Equal(t, "2030-01-31", byTitle["Subsidy deadline"]["deadline"])
	assert.Equal(t, "Alert", byTitle["Leaf rust alert"]["type"])
	assert.Equal(t, "Medium", byTitle["Leaf rust alert"]["priority"])
	assert.Equal(t, "Inspect your plants", byTitle["Leaf rust alert"]["body"])

	rec = a.do(http.MethodGet, "/blog/notices?priority=High", "")
	assert.Len(t, decode(t, rec)["notices"], 1)

	rec = a.do(http.MethodGet, "/blog/notices?type=Training", "")
	assert.Empty(t, decode(t, rec)["notices"])
}
