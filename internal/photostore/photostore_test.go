package photostore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSave(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos/")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	url, err := store.Save(strings.NewReader("jpeg-data"), "pump.jpg")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}

	if !strings.HasPrefix(url, "/static/photos/pump_") {
		t.Errorf("URL = %q, ожидается префикс /static/photos/pump_", url)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Errorf("URL = %q, расширение должно сохраняться", url)
	}

	// Файл на диске с содержимым
	name := strings.TrimPrefix(url, "/static/photos/")
	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	if err != nil {
		t.Fatalf("файл не записан на диск: %v", err)
	}
	if string(data) != "jpeg-data" {
		t.Errorf("содержимое = %q, ожидается jpeg-data", data)
	}

	// Temp файлов не осталось
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir() вернул ошибку: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("остался временный файл %s", e.Name())
		}
	}
}

func TestSave_UniqueNames(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	first, err := store.Save(strings.NewReader("a"), "photo.jpg")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}
	second, err := store.Save(strings.NewReader("b"), "photo.jpg")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}
	if first == second {
		t.Errorf("одинаковые имена файлов должны давать разные URL: %q", first)
	}
}

func TestSave_SanitizesFilename(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	url, err := store.Save(strings.NewReader("x"), "../../etc/passwd фото.png")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}
	name := strings.TrimPrefix(url, "/static/photos/")
	if strings.Contains(name, "/") || strings.Contains(name, "..") {
		t.Errorf("имя файла %q содержит небезопасные символы", name)
	}
}

func TestRemove(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	url, err := store.Save(strings.NewReader("jpeg-data"), "pump.jpg")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}

	if err := store.Remove(url); err != nil {
		t.Fatalf("Remove() вернул ошибку: %v", err)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir() вернул ошибку: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("после Remove() директория не пуста: %d файлов", len(entries))
	}

	if err := store.Remove(url); err == nil {
		t.Error("повторный Remove() должен вернуть ошибку")
	}
}

func TestRemove_BadURL(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	for _, url := range []string{"", "/static/photos/", "/static/photos/."} {
		if err := store.Remove(url); err == nil {
			t.Errorf("Remove(%q) должен вернуть ошибку", url)
		}
	}
}

func TestSave_EmptyName(t *testing.T) {
	store, err := New(t.TempDir(), "/static/photos")
	if err != nil {
		t.Fatalf("New() вернул ошибку: %v", err)
	}

	url, err := store.Save(strings.NewReader("x"), "")
	if err != nil {
		t.Fatalf("Save() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(url, "/static/photos/photo_") {
		t.Errorf("URL = %q, для пустого имени ожидается запасное photo_", url)
	}
}
