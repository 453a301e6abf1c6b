package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hazyhaar/larder/costing"
	"github.com/hazyhaar/larder/dbopen"
	"github.com/hazyhaar/larder/docpipe"
	"github.com/hazyhaar/larder/ingest"
	"github.com/hazyhaar/larder/journal"
	"github.com/hazyhaar/larder/record"
	"github.com/hazyhaar/larder/warehouse"
)

const recipeMD = "# Guiso\n\n- 500 g de carne picada\n- 1 kg de papa\n"

const priceCSV = "Producto;Precio\nTomate;$ 1.200,50\nPapa;850\n"

type fakeRates struct {
	rate decimal.Decimal
	err  error
}

func (f fakeRates) USDRate(context.Context, time.Time) (decimal.Decimal, error) {
	return f.rate, f.err
}

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	store   *warehouse.Store
	journal *journal.Journal
	dir     string
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := warehouse.Open(filepath.Join(dir, "data_warehouse.json"))
	if err != nil {
		t.Fatal(err)
	}
	j, err := journal.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	ing := ingest.New(docpipe.New(docpipe.Config{}), store,
		ingest.Config{InputDir: filepath.Join(dir, "inputs"), MaxFileBytes: maxUpload},
		ingest.WithJournal(j))
	calc := costing.New(store, fakeRates{rate: decimal.NewFromInt(1000)})

	srv := New(ing, calc, WithJournal(j), WithMaxUpload(maxUpload))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts, store: store, journal: j, dir: dir}
}

func (e *testEnv) upload(t *testing.T, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	mw.Close()

	resp, err := http.Post(e.ts.URL+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, e.ts.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func errorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error == "" {
		t.Errorf("status %d without error message", resp.StatusCode)
	}
	return body.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	resp := env.do(t, "GET", "/health")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" || resp.Header.Get("X-Trace-ID") == "" {
		t.Error("shield headers missing")
	}

	if resp := env.do(t, "HEAD", "/health"); resp.StatusCode != 200 {
		t.Errorf("HEAD status = %d", resp.StatusCode)
	}
}

func TestFrontEnd(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	resp := env.do(t, "GET", "/")
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || !strings.Contains(string(data), "/static/app.js") {
		t.Fatalf("index: status %d", resp.StatusCode)
	}

	resp = env.do(t, "GET", "/static/app.js")
	if resp.StatusCode != 200 {
		t.Errorf("app.js status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
		t.Errorf("app.js content type = %q", ct)
	}
}

func TestUpload_Recipe(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	resp := env.upload(t, "recetas.md", recipeMD)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, errorBody(t, resp))
	}
	var res ingest.Result
	decodeBody(t, resp, &res)
	if res.Import.Format != "md" || len(res.Recipes) != 1 || res.Recipes[0].Name != "Guiso" {
		t.Errorf("result = %+v", res)
	}
	if res.Prices == nil {
		t.Error("prices should encode as an empty list")
	}
}

func TestUpload_Errors(t *testing.T) {
	// WHAT: Each failure class maps to its status code with a JSON error body.
	// WHY: The front-end shows the message and keeps the store as it was.
	env := newTestEnv(t, 1<<20)

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"notas.txt", "hola", http.StatusUnsupportedMediaType},
		{"informe.docx", "PK\x03\x04", http.StatusUnsupportedMediaType},
		{"precios.csv", "sin;precios\n", http.StatusUnprocessableEntity},
		{"lista.pdf", "%PDF-1.4 broken", http.StatusUnprocessableEntity},
		{"lista.pdf", priceCSV, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		resp := env.upload(t, tt.name, tt.content)
		if resp.StatusCode != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.want)
		}
		errorBody(t, resp)
	}

	if st := env.store.Stats(); st.Imports != 0 || st.Recipes != 0 || st.Prices != 0 {
		t.Errorf("store mutated: %+v", st)
	}
	c, _ := env.journal.Counts(context.Background())
	if c.Rejected != len(tests) {
		t.Errorf("rejected = %d, want %d", c.Rejected, len(tests))
	}
}

func TestUpload_MissingField(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	resp, err := http.Post(env.ts.URL+"/api/upload", "application/x-www-form-urlencoded", strings.NewReader("a=b"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, 64)

	// Over the ingest cap but within the body cap.
	resp := env.upload(t, "precios.csv", priceCSV+strings.Repeat("Papa;850\n", 10))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", resp.StatusCode)
	}

	// Over the body cap: refused before the multipart form is read.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "precios.csv")
	fw.Write(bytes.Repeat([]byte("x"), 2<<20))
	mw.Close()
	req := httptest.NewRequest("POST", "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", w.Code)
	}
}

func TestUpload_ImportsInOrder(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	names := []string{"a.csv", "b.md", "c.csv"}
	contents := []string{priceCSV, recipeMD, priceCSV}
	for i := range names {
		if resp := env.upload(t, names[i], contents[i]); resp.StatusCode != http.StatusCreated {
			t.Fatalf("%s: status %d", names[i], resp.StatusCode)
		}
	}

	var imports []record.Import
	decodeBody(t, env.do(t, "GET", "/api/imports"), &imports)
	if len(imports) != len(names) {
		t.Fatalf("imports = %d", len(imports))
	}
	for i, imp := range imports {
		if imp.File != names[i] {
			t.Errorf("import %d = %s, want %s", i, imp.File, names[i])
		}
	}
}

func TestRecipes(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.upload(t, "recetas.md", recipeMD)

	var all []record.Recipe
	decodeBody(t, env.do(t, "GET", "/api/recipes"), &all)
	if len(all) != 1 {
		t.Fatalf("recipes = %d", len(all))
	}
	id := all[0].ID

	var found []record.Recipe
	decodeBody(t, env.do(t, "GET", "/api/recipes?q=papa"), &found)
	if len(found) != 1 {
		t.Errorf("q=papa: %d", len(found))
	}
	var none []record.Recipe
	decodeBody(t, env.do(t, "GET", "/api/recipes?q=salmon"), &none)
	if none == nil || len(none) != 0 {
		t.Errorf("q=salmon should be an empty list, got %v", none)
	}

	var one record.Recipe
	decodeBody(t, env.do(t, "GET", "/api/recipes/"+id), &one)
	if one.Name != "Guiso" || len(one.Ingredients) != 2 {
		t.Errorf("recipe = %+v", one)
	}

	if resp := env.do(t, "DELETE", "/api/recipes/"+id); resp.StatusCode != 200 {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := env.do(t, "DELETE", "/api/recipes/"+id); resp.StatusCode != 404 {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
	if resp := env.do(t, "GET", "/api/recipes/"+id); resp.StatusCode != 404 {
		t.Errorf("get deleted status = %d", resp.StatusCode)
	}
}

func TestPrices(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.upload(t, "precios.csv", priceCSV)

	var prices []record.Price
	decodeBody(t, env.do(t, "GET", "/api/prices"), &prices)
	if len(prices) != 2 || prices[0].ID != "papa" || prices[1].ID != "tomate" {
		t.Fatalf("prices = %+v", prices)
	}
	if !prices[1].PerKg.Equal(decimal.RequireFromString("1200.50")) {
		t.Errorf("tomate = %s", prices[1].PerKg)
	}

	if resp := env.do(t, "DELETE", "/api/prices/tomate"); resp.StatusCode != 200 {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := env.do(t, "DELETE", "/api/prices/tomate"); resp.StatusCode != 404 {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
	if len(env.store.Prices()) != 1 {
		t.Error("price not deleted from store")
	}
}

func TestJournal(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.upload(t, "precios.csv", priceCSV)
	env.upload(t, "notas.txt", "x")

	var body struct {
		Entries []journal.Entry `json:"entries"`
		Counts  journal.Counts  `json:"counts"`
	}
	decodeBody(t, env.do(t, "GET", "/api/journal?limit=1"), &body)
	if len(body.Entries) != 1 || body.Entries[0].File != "notas.txt" {
		t.Errorf("entries = %+v", body.Entries)
	}
	if body.Counts.Accepted != 1 || body.Counts.Rejected != 1 {
		t.Errorf("counts = %+v", body.Counts)
	}
	if body.Entries[0].RequestID == "" {
		t.Error("request id not journaled")
	}
}

func TestWarehouseQuery(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.upload(t, "precios.csv", priceCSV)

	resp := env.do(t, "GET", "/api/warehouse?path=prices.tomate.price_per_kg")
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(data) != `"1200.5"` {
		t.Errorf("query = %d %s", resp.StatusCode, data)
	}

	var doc map[string]json.RawMessage
	decodeBody(t, env.do(t, "GET", "/api/warehouse"), &doc)
	for _, key := range []string{"metadata", "prices", "recipes", "imports"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("document missing %q", key)
		}
	}

	if resp := env.do(t, "GET", "/api/warehouse?path=prices.caviar"); resp.StatusCode != 404 {
		t.Errorf("missing path status = %d", resp.StatusCode)
	}
}

func TestCalculate(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.upload(t, "precios.csv", priceCSV)
	env.upload(t, "recetas.md", recipeMD)

	resp := env.do(t, "GET", "/api/calculate?date=2026-03-01")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var report costing.Report
	decodeBody(t, resp, &report)
	if report.Date != "2026-03-01" || len(report.Recipes) != 1 {
		t.Fatalf("report = %+v", report)
	}
	rc := report.Recipes[0]
	if !rc.TotalARS.Equal(decimal.NewFromInt(850)) {
		t.Errorf("total ars = %s", rc.TotalARS)
	}
	if rc.TotalUSD == nil || !rc.TotalUSD.Equal(decimal.RequireFromString("0.85")) {
		t.Errorf("total usd = %v", rc.TotalUSD)
	}
	if !rc.HasMissing || rc.MissingCount != 1 {
		t.Errorf("missing = %v/%d", rc.HasMissing, rc.MissingCount)
	}
}

func TestCalculate_BadDate(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	for _, d := range []string{"01-03-2026", "2026-13-01", "ayer"} {
		resp := env.do(t, "GET", "/api/calculate?date="+d)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("date %q: status = %d", d, resp.StatusCode)
		}
		errorBody(t, resp)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	resp := env.do(t, "GET", "/api/nope")
	if resp.StatusCode != 404 {
		t.Errorf("status = %d", resp.StatusCode)
	}
	errorBody(t, resp)

	resp = env.do(t, "PUT", "/api/prices")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
