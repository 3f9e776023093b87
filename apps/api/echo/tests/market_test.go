package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeehubnepal/api/core/user"
	testutil "github.com/coffeehubnepal/api/tests"
)

func Test_jobApi(t *testing.T) {
	a := setup(t)
	poster, posterToken := a.createUser(t, "Estate", "estate@test.com", testutil.WithRole(user.RoleExporter))
	_, otherToken := a.createUser(t, "Other", "other@test.com")
	_, adminToken := a.createUser(t, "Admin", "admin@test.com", testutil.WithRole(user.RoleAdmin))

	newJob := `{
		"title": "Harvest picker",
		"description": "Seasonal picking work",
		"company": "Gulmi Estate",
		"location": "Gulmi",
		"type": "Seasonal",
		"contactEmail": "HR@Gulmi.test",
		"deadline": "2030-11-30",
		"requirements": ["Stamina", ""]
	}`

	rec := a.do(http.MethodPost, "/jobs", posterToken, []byte(`{"title":"x","description":"y","company":"z","location":"w","type":"Gig","contactEmail":"a@b.c"}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodPost, "/jobs", posterToken, []byte(newJob))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode(t, rec)
	id := job["id"].(string)
	assert.Equal(t, poster.ID, job["postedBy"])
	assert.Equal(t, "hr@gulmi.test", job["contactEmail"])
	assert.Equal(t, []interface{}{"Stamina"}, job["requirements"])
	assert.Equal(t, "2030-11-30T00:00:00Z", job["deadline"])

	rec = a.do(http.MethodPost, "/jobs", otherToken, []byte(`{"title":"Barista","description":"Coffee shop","company":"Himalayan Java","location":"Kathmandu","type":"Full-time","contactEmail":"jobs@hj.test"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for query, want := range map[string]int{
		"":                        2,
		"?type=Seasonal":          1,
		"?location=kathmandu":     1,
		"?search=java":            1,
		"?postedBy=" + poster.ID:  1,
		"?search=java&type=Other": 0,
	} {
		rec = a.do(http.MethodGet, "/jobs"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode(t, rec)["jobs"], want, query)
	}

	rec = a.do(http.MethodPut, "/jobs/"+id, otherToken, []byte(`{"salary":"1"}`))
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")

	rec = a.do(http.MethodPut, "/jobs/"+id, posterToken, []byte(`{"salary":"NPR 1,200/day"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "NPR 1,200/day", decode(t, rec)["salary"])

	rec = a.do(http.MethodDelete, "/jobs/"+id, adminToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message":"Job deleted successfully"}`)}, rec)

	rec = a.do(http.MethodGet, "/jobs/"+id, "")
	checkErrorCode(t, rec, http.StatusNotFound, "JOB_NOT_FOUND")

	rec = a.do(http.MethodGet, "/jobs", "")
	assert.Len(t, decode(t, rec)["jobs"], 1)
}

func Test_productApi(t *testing.T) {
	a := setup(t)
	seller, sellerToken := a.createUser(t, "Ramesh", "ramesh@test.com")
	_, otherToken := a.createUser(t, "Other", "other@test.com")

	newProduct := func(name, price string) []byte {
		return []byte(`{
			"name": "` + name + `",
			"description": "Washed arabica, 2024 harvest",
			"category": "Green Beans",
			"price": ` + price + `,
			"unit": "kg",
			"quantity": 120.5,
			"location": "Syangja"
		}`)
	}

	rec := a.do(http.MethodPost, "/products", sellerToken, newProduct("Bad", "-1"))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_AMOUNT")

	rec = a.do(http.MethodPost, "/products", sellerToken, newProduct("Green arabica", "850.50"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode(t, rec)
	id := p["id"].(string)
	assert.Equal(t, seller.ID, p["seller"])
	assert.Equal(t, "Ramesh", p["sellerName"])
	assert.Equal(t, "NPR", p["currency"])
	assert.Equal(t, "850.5", p["price"])
	assert.Equal(t, "120.5", p["quantity"])

	rec = a.do(http.MethodPost, "/products", sellerToken, newProduct("Premium arabica", "1200"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		query string
		want  int
	}{
		{"?minPrice=900", 1},
		{"?maxPrice=900", 1},
		{"?minPrice=800&maxPrice=1300", 2},
		{"?category=Cherry", 0},
		{"?search=premium", 1},
		{"?seller=" + seller.ID, 2},
	}
	for _, tt := range tests {
		rec = a.do(http.MethodGet, "/products"+tt.query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode(t, rec)["products"], tt.want, tt.query)
	}

	rec = a.do(http.MethodGet, "/products?minPrice=cheap", "")
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodGet, "/products?minPrice=10&maxPrice=5", "")
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_PRICE_RANGE")

	rec = a.do(http.MethodPut, "/products/"+id, otherToken, []byte(`{"price":1}`))
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")

	rec = a.do(http.MethodPut, "/products/"+id, sellerToken, []byte(`{"quantity":-3}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_AMOUNT")

	rec = a.do(http.MethodPut, "/products/"+id, sellerToken, []byte(`{"price":"900","currency":"USD"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p = decode(t, rec)
	assert.Equal(t, "900", p["price"])
	assert.Equal(t, "USD", p["currency"])

	rec = a.do(http.MethodDelete, "/products/"+id, sellerToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/products/"+id, "")
	checkErrorCode(t, rec, http.StatusNotFound, "PRODUCT_NOT_FOUND")
}

func Test_priceApi(t *testing.T) {
	a := setup(t)
	_, expertToken := a.createUser(t, "Expert", "expert@test.com", testutil.WithRole(user.RoleExpert))
	_, farmerToken := a.createUser(t, "Farmer", "farmer@test.com")

	rec := a.do(http.MethodPost, "/prices", farmerToken, []byte(`{"variety":"Green Beans","region":"Kavre","price":500}`))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: "PERMISSION_DENIED", Code: "PERMISSION_DENIED", Message: "Only experts and staff can manage prices."}),
	}, rec)

	rec = a.do(http.MethodPost, "/prices", expertToken, []byte(`{"variety":"Green Beans","region":"Kavre","price":0}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_PRICE")

	rec = a.do(http.MethodPost, "/prices", expertToken, []byte(`{"variety":"Espresso","region":"Kavre","price":10}`))
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	var ids []string
	for _, body := range []string{
		`{"variety":"Green Beans","region":"Kavre","price":480,"date":"2030-01-01"}`,
		`{"variety":"Green Beans","region":"Kavre","price":510,"date":"2030-02-01"}`,
		`{"variety":"Arabica Cherry","region":"Gulmi","price":120,"date":"2030-01-15","unit":"kg"}`,
	} {
		rec = a.do(http.MethodPost, "/prices", expertToken, []byte(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		pr := decode(t, rec)
		assert.Equal(t, "NPR", pr["currency"])
		assert.Equal(t, "kg", pr["unit"])
		ids = append(ids, pr["id"].(string))
	}

	rec = a.do(http.MethodGet, "/prices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	prices := decode(t, rec)["prices"].([]interface{})
	require.Len(t, prices, 3)
	assert.Equal(t, ids[1], prices[0].(map[string]interface{})["id"])

	rec = a.do(http.MethodGet, "/prices?region=kav&from=2030-01-15", "")
	assert.Len(t, decode(t, rec)["prices"], 1)

	// a bare "to" date includes entries posted later that day
	rec = a.do(http.MethodPost, "/prices", expertToken, []byte(`{"variety":"Roasted Beans","region":"Kaski","price":1500,"date":"2030-01-15T16:30:00Z"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lateID := decode(t, rec)["id"].(string)
	for query, want := range map[string]int{
		"?to=2030-01-15":                 3,
		"?from=2030-01-15&to=2030-01-15": 2,
		"?to=2030-01-15T12:00:00Z":       2,
		"?region=kaski&to=2030-01-14":    0,
		"?from=2030-01-15T17:00:00Z":     1,
	} {
		rec = a.do(http.MethodGet, "/prices"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Len(t, decode(t, rec)["prices"], want, query)
	}
	rec = a.do(http.MethodDelete, "/prices/"+lateID, expertToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, "/prices?from=yesterday", "")
	checkErrorCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = a.do(http.MethodGet, "/prices/latest", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	latest := decode(t, rec)["prices"].([]interface{})
	require.Len(t, latest, 2)
	byVariety := make(map[string]string)
	for _, l := range latest {
		l := l.(map[string]interface{})
		byVariety[l["variety"].(string)] = l["price"].(string)
	}
	assert.Equal(t, map[string]string{"Green Beans": "510", "Arabica Cherry": "120"}, byVariety)

	rec = a.do(http.MethodPut, "/prices/"+ids[2], farmerToken, []byte(`{"price":130}`))
	checkErrorCode(t, rec, http.StatusForbidden, "PERMISSION_DENIED")

	rec = a.do(http.MethodPut, "/prices/"+ids[2], expertToken, []byte(`{"price":130,"notes":"<b>fresh</b> pick"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pr := decode(t, rec)
	assert.Equal(t, "130", pr["price"])
	assert.Equal(t, "fresh pick", pr["notes"])

	rec = a.do(http.MethodDelete, "/prices/"+ids[0], expertToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"message":"Price entry deleted successfully"}`)}, rec)

	rec = a.do(http.MethodGet, "/prices/"+ids[0], "")
	checkErrorCode(t, rec, http.StatusNotFound, "PRICE_NOT_FOUND")

	rec = a.do(http.MethodGet, "/prices/not-an-id", "")
	checkErrorCode(t, rec, http.StatusBadRequest, "INVALID_ID")
}

func TestMetrics(t *testing.T) {
	a := setup(t)
	a.do(http.MethodGet, "/health", "")

	rec := a.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coffeehub_http_requests_total")
	assert.Contains(t, rec.Body.String(), `path="/health"`)
}
