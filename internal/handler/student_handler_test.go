package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentrecords/internal/handler"
	"studentrecords/internal/model"
	"studentrecords/internal/service"
	"studentrecords/internal/storage"
)

type failingBackend struct {
	*storage.Memory
}

func (b *failingBackend) Save([]model.Student) error {
	return errors.New("disk full")
}

func sampleStudents() []model.Student {
	return []model.Student{
		{RollNumber: "CS001", Name: "Alice Johnson", Age: 20, Marks: 95},
		{RollNumber: "CS002", Name: "Bob Smith", Age: 19, Marks: 87},
		{RollNumber: "CS003", Name: "Charlie Brown", Age: 21, Marks: 78},
		{RollNumber: "CS004", Name: "Diana Prince", Age: 20, Marks: 92},
		{RollNumber: "CS005", Name: "Eve Wilson", Age: 19, Marks: 69},
	}
}

func setupRouter(t *testing.T, backend storage.Backend) (http.Handler, *service.StudentService) {
	t.Helper()
	svc, err := service.NewStudentService(backend, nil)
	require.NoError(t, err)
	students := handler.NewStudentHandler(service.NewGuard(svc), nil)
	return handler.NewRouter(students, nil, nil), svc
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&response))
	return response
}

func TestListStudents(t *testing.T) {
	router, _ := setupRouter(t, storage.NewMemory(sampleStudents()...))

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedRolls  []string
	}{
		{"All students", "", http.StatusOK, []string{"CS001", "CS002", "CS003", "CS004", "CS005"}},
		{"Filter by name", "?q=ali", http.StatusOK, []string{"CS001"}},
		{"Filter by roll substring", "?q=cs00", http.StatusOK, []string{"CS001", "CS002", "CS003", "CS004", "CS005"}},
		{"Filter by grade", "?grade=a%2B", http.StatusOK, []string{"CS001", "CS004"}},
		{"Search by roll", "?mode=roll&q=cs003", http.StatusOK, []string{"CS003"}},
		{"Search by name", "?mode=name&q=LIC", http.StatusOK, []string{"CS001"}},
		{"Search with empty term", "?mode=name", http.StatusOK, []string{}},
		{"Sort by marks", "?sort=marks_desc", http.StatusOK, []string{"CS001", "CS004", "CS002", "CS003", "CS005"}},
		{"Sort by name", "?sort=name", http.StatusOK, []string{"CS001", "CS002", "CS003", "CS004", "CS005"}},
		{"Bad sort", "?sort=age", http.StatusBadRequest, nil},
		{"Bad grade", "?grade=Z", http.StatusBadRequest, nil},
		{"Bad mode", "?mode=age&q=x", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, http.MethodGet, "/students"+tt.query, "")
			require.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedRolls == nil {
				return
			}

			response := decode(t, rr)
			data := response["data"].([]interface{})
			rolls := make([]string, 0, len(data))
			for _, d := range data {
				rolls = append(rolls, d.(map[string]interface{})["roll_number"].(string))
			}
			assert.Equal(t, tt.expectedRolls, rolls)
			assert.Equal(t, float64(len(tt.expectedRolls)), response["total"])
		})
	}
}

func TestGetStudent(t *testing.T) {
	router, _ := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodGet, "/students/cs002", "")
	require.Equal(t, http.StatusOK, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, "CS002", response["roll_number"])
	assert.Equal(t, "Bob Smith", response["name"])
	assert.Equal(t, "A", response["grade"])

	rr = serve(router, http.MethodGet, "/students/CS999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateStudent(t *testing.T) {
	backend := storage.NewMemory(sampleStudents()...)
	router, svc := setupRouter(t, backend)

	rr := serve(router, http.MethodPost, "/students", `{"roll_number":" CS006 ","name":"  frank castle ","age":22,"marks":"87.5"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, true, response["persisted"])
	student := response["student"].(map[string]interface{})
	assert.Equal(t, "CS006", student["roll_number"])
	assert.Equal(t, "Frank Castle", student["name"])
	assert.Equal(t, float64(22), student["age"])
	assert.Equal(t, 87.5, student["marks"])
	assert.Equal(t, "A", student["grade"])

	assert.Equal(t, 6, svc.Len())
	saved, err := backend.Load()
	require.NoError(t, err)
	assert.Len(t, saved, 6)
}

func TestCreateStudentRejected(t *testing.T) {
	router, svc := setupRouter(t, storage.NewMemory(sampleStudents()...))

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedField  string
	}{
		{"Duplicate roll", `{"roll_number":"cs001","name":"Someone","age":20,"marks":50}`, http.StatusConflict, ""},
		{"Empty roll", `{"roll_number":"  ","name":"Someone","age":20,"marks":50}`, http.StatusBadRequest, "roll_number"},
		{"Short name", `{"roll_number":"X1","name":" A ","age":20,"marks":50}`, http.StatusBadRequest, "name"},
		{"Age too high", `{"roll_number":"X1","name":"Someone","age":151,"marks":50}`, http.StatusBadRequest, "age"},
		{"Age not integer", `{"roll_number":"X1","name":"Someone","age":"abc","marks":50}`, http.StatusBadRequest, "age"},
		{"Marks too high", `{"roll_number":"X1","name":"Someone","age":20,"marks":100.5}`, http.StatusBadRequest, "marks"},
		{"Slash in roll", `{"roll_number":"CS/01","name":"Someone","age":20,"marks":50}`, http.StatusBadRequest, "roll_number"},
		{"Line break in name", `{"roll_number":"X1","name":"Ann\r\nLee","age":20,"marks":50}`, http.StatusBadRequest, "name"},
		{"Malformed JSON", `{"roll_number":`, http.StatusBadRequest, ""},
		{"Unknown field", `{"roll_number":"X1","grade":"A"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(router, http.MethodPost, "/students", tt.body)
			require.Equal(t, tt.expectedStatus, rr.Code)
			response := decode(t, rr)
			assert.NotEmpty(t, response["error"])
			if tt.expectedField != "" {
				assert.Equal(t, tt.expectedField, response["field"])
			}
		})
	}
	assert.Equal(t, 5, svc.Len())
}

func TestCreatedStudentIsAddressable(t *testing.T) {
	router, svc := setupRouter(t, storage.NewMemory())

	rr := serve(router, http.MethodPost, "/students", `{"roll_number":"CS/01","name":"Ann Lee","age":20,"marks":50}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, svc.Len())

	rr = serve(router, http.MethodPost, "/students", `{"roll_number":"CS 01","name":"Ann Lee","age":20,"marks":50}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(router, http.MethodGet, "/students/cs%2001", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CS 01", decode(t, rr)["roll_number"])

	rr = serve(router, http.MethodPatch, "/students/CS%2001", `{"marks":75}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(router, http.MethodDelete, "/students/CS%2001", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, svc.Len())
}

func TestCreateStudentNotPersisted(t *testing.T) {
	router, svc := setupRouter(t, &failingBackend{Memory: storage.NewMemory()})

	rr := serve(router, http.MethodPost, "/students", `{"roll_number":"A1","name":"Ann Lee","age":20,"marks":50}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, false, response["persisted"])
	assert.Contains(t, response["warning"], "disk full")
	assert.Equal(t, 1, svc.Len())
}

func TestUpdateStudent(t *testing.T) {
	router, svc := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodPatch, "/students/CS003", `{"marks":55}`)
	require.Equal(t, http.StatusOK, rr.Code)
	student := decode(t, rr)["student"].(map[string]interface{})
	assert.Equal(t, "Charlie Brown", student["name"])
	assert.Equal(t, float64(21), student["age"])
	assert.Equal(t, "C", student["grade"])

	rr = serve(router, http.MethodPut, "/students/CS003", `{"name":"charles brown","age":"22"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	got, err := svc.FindByRoll("CS003")
	require.NoError(t, err)
	assert.Equal(t, model.Student{RollNumber: "CS003", Name: "Charles Brown", Age: 22, Marks: 55}, got)
}

func TestUpdateStudentRejected(t *testing.T) {
	router, svc := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodPatch, "/students/CS001", `{"name":"Alicia","age":0}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "age", decode(t, rr)["field"])

	got, err := svc.FindByRoll("CS001")
	require.NoError(t, err)
	assert.Equal(t, "Alice Johnson", got.Name)
	assert.Equal(t, 20, got.Age)

	rr = serve(router, http.MethodPatch, "/students/cs001", `{"marks":10}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(router, http.MethodPatch, "/students/CS001", `{"age":[1]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteStudent(t *testing.T) {
	router, svc := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodDelete, "/students/CS002", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Bob Smith", decode(t, rr)["student"].(map[string]interface{})["name"])
	assert.Equal(t, 4, svc.Len())

	rr = serve(router, http.MethodDelete, "/students/CS002", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 4, svc.Len())
}

func TestGetStatistics(t *testing.T) {
	router, _ := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodGet, "/statistics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	response := decode(t, rr)
	assert.Equal(t, float64(5), response["count"])
	assert.InDelta(t, 84.2, response["mean_marks"], 1e-9)
	assert.Equal(t, float64(95), response["max_marks"])
	assert.Equal(t, float64(69), response["min_marks"])

	histogram := response["grade_histogram"].(map[string]interface{})
	assert.Equal(t, float64(2), histogram["A+"])
	assert.Equal(t, float64(0), histogram["F"])
	assert.Len(t, histogram, 7)

	percent := response["grade_percent"].(map[string]interface{})
	assert.InDelta(t, 40.0, percent["A+"], 1e-9)
	assert.Len(t, response["marks_histogram"], 10)
}

func TestGetStatisticsEmpty(t *testing.T) {
	router, _ := setupRouter(t, storage.NewMemory())

	rr := serve(router, http.MethodGet, "/statistics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, service.ErrEmptyStore.Error(), decode(t, rr)["error"])
}

func TestExportStudents(t *testing.T) {
	router, _ := setupRouter(t, storage.NewMemory(sampleStudents()...))

	rr := serve(router, http.MethodGet, "/export?format=csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `attachment; filename="students_`)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `.csv"`)
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "roll_number,name,age,marks,grade", lines[0])
	assert.Equal(t, "CS001,Alice Johnson,20,95,A+", lines[1])

	rr = serve(router, http.MethodGet, "/export", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, float64(5), decode(t, rr)["total_students"])

	rr = serve(router, http.MethodGet, "/export?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReload(t *testing.T) {
	backend := storage.NewMemory(sampleStudents()...)
	router, svc := setupRouter(t, backend)

	require.NoError(t, backend.Save(sampleStudents()[:2]))
	rr := serve(router, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(2), decode(t, rr)["count"])
	assert.Equal(t, 2, svc.Len())
}

func TestMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := handler.Middleware(mux, []string{"http://localhost:3000"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
