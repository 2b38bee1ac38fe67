package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arturkryukov/upkeep/maintenance-module/internal/domain/model"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/photostore"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/repository"
	"github.com/arturkryukov/upkeep/maintenance-module/internal/service"
)

// --- In-memory фейки репозиториев ---

type memTemplateRepo struct {
	templates map[string]*model.Template
}

func (r *memTemplateRepo) Create(_ context.Context, tpl *model.Template) error {
	if _, ok := r.templates[tpl.ID]; ok {
		return repository.ErrConflict
	}
	tpl.CreatedAt = time.Now().UTC()
	tpl.UpdatedAt = tpl.CreatedAt
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *memTemplateRepo) GetByID(_ context.Context, id string) (*model.Template, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tpl
	cp.Items = model.CloneItems(tpl.Items)
	return &cp, nil
}

func (r *memTemplateRepo) List(_ context.Context, _ bool, _, _ int) ([]*model.Template, error) {
	return nil, nil
}

func (r *memTemplateRepo) Count(_ context.Context, _ bool) (int, error) {
	return len(r.templates), nil
}

func (r *memTemplateRepo) Update(_ context.Context, tpl *model.Template) error {
	if _, ok := r.templates[tpl.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *memTemplateRepo) SetActive(_ context.Context, id string, active bool) error {
	tpl, ok := r.templates[id]
	if !ok {
		return repository.ErrNotFound
	}
	tpl.IsActive = active
	return nil
}

func (r *memTemplateRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.templates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.templates, id)
	return nil
}

type memRecordRepo struct {
	records map[string]*model.MaintenanceRecord
}

func (r *memRecordRepo) Create(_ context.Context, rec *model.MaintenanceRecord) error {
	if _, ok := r.records[rec.ID]; ok {
		return repository.ErrConflict
	}
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *memRecordRepo) GetByID(_ context.Context, id string) (*model.MaintenanceRecord, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memRecordRepo) List(_ context.Context, _ repository.RecordFilter, _, _ int) ([]*model.MaintenanceRecord, error) {
	return nil, nil
}

func (r *memRecordRepo) Count(_ context.Context, _ repository.RecordFilter) (int, error) {
	return len(r.records), nil
}

func (r *memRecordRepo) UpdateFrom(_ context.Context, rec *model.MaintenanceRecord, expected model.Status) error {
	existing, ok := r.records[rec.ID]
	if !ok || existing.Status != expected {
		return repository.ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *memRecordRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memRecordRepo) CountByTemplate(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (r *memRecordRepo) ListByTemplate(_ context.Context, _ string) ([]repository.TemplateUsage, error) {
	return nil, nil
}

func (r *memRecordRepo) ListUpcoming(_ context.Context, _, _ time.Time) ([]*model.MaintenanceRecord, error) {
	return nil, nil
}

type memAssetRepo struct {
	assets map[string]string
}

func (r *memAssetRepo) LookupName(_ context.Context, assetType model.AssetType, id string) (string, error) {
	name, ok := r.assets[string(assetType)+"/"+id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}

func (r *memAssetRepo) Exists(_ context.Context, assetType model.AssetType, id string) (bool, error) {
	_, ok := r.assets[string(assetType)+"/"+id]
	return ok, nil
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

// handlerEnv — API-обработчик поверх in-memory фейков и chi-роутера.
type handlerEnv struct {
	router    *chi.Mux
	recRepo   *memRecordRepo
	templates *service.TemplateService
	photos    *photostore.Store
	clock     *fixedClock
	genID     string
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &fixedClock{t: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}

	tplRepo := &memTemplateRepo{templates: make(map[string]*model.Template)}
	recRepo := &memRecordRepo{records: make(map[string]*model.MaintenanceRecord)}
	genID := uuid.New().String()
	assetRepo := &memAssetRepo{assets: map[string]string{
		string(model.AssetTypeGenerator) + "/" + genID: "Генератор G42",
	}}

	cache := service.NewTemplateCache(16, time.Minute)
	templates := service.NewTemplateService(tplRepo, recRepo, nil, cache, clock, logger)
	records := service.NewMaintenanceService(recRepo, assetRepo, templates, clock, logger)

	photos, err := photostore.New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("photostore.New() вернул ошибку: %v", err)
	}

	h := NewAPIHandler(nil, templates, records, nil, photos, logger)

	router := chi.NewRouter()
	router.Post("/api/v1/records/{id}/start", h.StartRecord)
	router.Post("/api/v1/records/{id}/complete", h.CompleteRecord)
	router.Post("/api/v1/records/{id}/photos", h.UploadRecordPhoto)
	router.Post("/api/v1/templates/{id}/duplicate", h.DuplicateTemplate)

	return &handlerEnv{
		router:    router,
		recRepo:   recRepo,
		templates: templates,
		photos:    photos,
		clock:     clock,
		genID:     genID,
	}
}

// seedRecord кладёт запись в статусе scheduled напрямую в репозиторий.
func (env *handlerEnv) seedRecord(t *testing.T) *model.MaintenanceRecord {
	t.Helper()
	rec := &model.MaintenanceRecord{
		ID:    uuid.New().String(),
		Title: "ТО генератора G42",
		Asset: model.AssetReference{
			Type: model.AssetTypeGenerator,
			ID:   env.genID,
			Name: "Генератор G42",
		},
		Status:      model.StatusScheduled,
		ScheduledAt: env.clock.t.AddDate(0, 0, 7),
		Recurrence:  model.RecurrenceOnce,
	}
	if err := env.recRepo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Создание записи: %v", err)
	}
	return rec
}

// chunkedBody прячет конкретный тип читателя: httptest.NewRequest
// выставляет ContentLength = -1, как у chunked-запроса без Content-Length.
func chunkedBody(s string) io.Reader {
	return struct{ io.Reader }{strings.NewReader(s)}
}

func (env *handlerEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeRecord(t *testing.T, rr *httptest.ResponseRecorder) recordResponse {
	t.Helper()
	var resp recordResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Декодирование ответа: %v", err)
	}
	return resp
}

// --- Тесты ---

func TestStartRecord_ChunkedBody(t *testing.T) {
	env := newHandlerEnv(t)
	rec := env.seedRecord(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/"+rec.ID+"/start",
		chunkedBody(`{"technician_id":"tech-1"}`))
	req.Header.Set("Content-Type", "application/json")
	if req.ContentLength != -1 {
		t.Fatalf("ContentLength = %d, тело должно быть без Content-Length", req.ContentLength)
	}

	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200; тело: %s", rr.Code, rr.Body)
	}
	resp := decodeRecord(t, rr)
	if resp.Status != model.StatusInProgress {
		t.Errorf("Status = %q, ожидается in_progress", resp.Status)
	}
	if resp.TechnicianID == nil || *resp.TechnicianID != "tech-1" {
		t.Errorf("TechnicianID = %v: поле из тела без Content-Length потеряно", resp.TechnicianID)
	}
}

func TestStartRecord_EmptyBody(t *testing.T) {
	env := newHandlerEnv(t)
	rec := env.seedRecord(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/"+rec.ID+"/start", http.NoBody)
	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200; тело: %s", rr.Code, rr.Body)
	}
	resp := decodeRecord(t, rr)
	if resp.TechnicianID != nil {
		t.Errorf("TechnicianID = %v, при пустом теле техник не назначается", resp.TechnicianID)
	}
}

func TestCompleteRecord_ChunkedBody(t *testing.T) {
	env := newHandlerEnv(t)
	rec := env.seedRecord(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/"+rec.ID+"/complete",
		chunkedBody(`{"notes":"Работы выполнены"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := env.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200; тело: %s", rr.Code, rr.Body)
	}
	var resp completeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Декодирование ответа: %v", err)
	}
	if resp.Record.Status != model.StatusCompleted {
		t.Errorf("Status = %q, ожидается completed", resp.Record.Status)
	}
	if resp.Record.Notes != "Работы выполнены" {
		t.Errorf("Notes = %q: поле из тела без Content-Length потеряно", resp.Record.Notes)
	}
}

func TestDuplicateTemplate_ChunkedBody(t *testing.T) {
	env := newHandlerEnv(t)
	tpl, err := env.templates.Create(context.Background(), "ТО генератора", "",
		[]model.ChecklistItem{{Title: "Проверить уровень масла", Kind: model.ItemKindYesNo, Required: true}})
	if err != nil {
		t.Fatalf("Create(template) вернул ошибку: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/templates/"+tpl.ID+"/duplicate",
		chunkedBody(`{"name":"ТО генератора (зима)"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := env.do(req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("статус = %d, ожидается 201; тело: %s", rr.Code, rr.Body)
	}
	var resp templateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Декодирование ответа: %v", err)
	}
	if resp.Name != "ТО генератора (зима)" {
		t.Errorf("Name = %q: имя из тела без Content-Length потеряно", resp.Name)
	}
}

// photoUploadRequest собирает multipart-запрос с полем photo.
func photoUploadRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", "pump.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile() вернул ошибку: %v", err)
	}
	if _, err := fw.Write([]byte("jpeg-data")); err != nil {
		t.Fatalf("Запись содержимого: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Закрытие multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, url, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func photoCount(t *testing.T, store *photostore.Store) int {
	t.Helper()
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir() вернул ошибку: %v", err)
	}
	return len(entries)
}

func TestUploadRecordPhoto(t *testing.T) {
	env := newHandlerEnv(t)
	rec := env.seedRecord(t)

	rr := env.do(photoUploadRequest(t, "/api/v1/records/"+rec.ID+"/photos"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("статус = %d, ожидается 201; тело: %s", rr.Code, rr.Body)
	}
	resp := decodeRecord(t, rr)
	if len(resp.Photos) != 1 || !strings.HasPrefix(resp.Photos[0], "/static/photos/") {
		t.Errorf("Photos = %v, ожидается один URL под /static/photos/", resp.Photos)
	}
	if n := photoCount(t, env.photos); n != 1 {
		t.Errorf("в хранилище %d файлов, ожидается 1", n)
	}
}

// Отказ прикрепления не должен оставлять файл-сироту на диске.
func TestUploadRecordPhoto_NoOrphanFiles(t *testing.T) {
	env := newHandlerEnv(t)

	// Несуществующая запись
	rr := env.do(photoUploadRequest(t, "/api/v1/records/"+uuid.New().String()+"/photos"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("статус = %d, ожидается 404; тело: %s", rr.Code, rr.Body)
	}
	if n := photoCount(t, env.photos); n != 0 {
		t.Errorf("в хранилище %d файлов после отказа, ожидается 0", n)
	}

	// Завершённая запись
	rec := env.seedRecord(t)
	now := env.clock.t
	rec.Status = model.StatusCompleted
	rec.CompletedAt = &now
	if err := env.recRepo.UpdateFrom(context.Background(), rec, model.StatusScheduled); err != nil {
		t.Fatalf("Завершение записи: %v", err)
	}
	rr = env.do(photoUploadRequest(t, "/api/v1/records/"+rec.ID+"/photos"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("статус = %d, ожидается 409; тело: %s", rr.Code, rr.Body)
	}
	if n := photoCount(t, env.photos); n != 0 {
		t.Errorf("в хранилище %d файлов после отказа, ожидается 0", n)
	}
}
