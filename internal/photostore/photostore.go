// Пакет photostore — файловое хранилище фотографий обслуживания.
// Сохраняет загруженные фотографии на диск и возвращает непрозрачный URL;
// записи обслуживания хранят только строки URL.
package photostore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store — хранилище фотографий на локальном диске.
type Store struct {
	// dir — корневая директория хранения (MM_PHOTO_DIR)
	dir string
	// baseURL — базовый URL, под которым фотографии доступны снаружи
	baseURL string
}

// New создаёт хранилище. Директория создаётся, если её нет.
func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию фотографий %s: %w", dir, err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save записывает фотографию на диск и возвращает её URL.
// Имя файла на диске: {name}_{timestamp}_{uuid}.{ext}.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Save(reader io.Reader, originalFilename string) (string, error) {
	storageName := generateStorageName(originalFilename)
	fullPath := filepath.Join(s.dir, storageName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи фотографии: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return s.baseURL + "/" + storageName, nil
}

// Remove удаляет фотографию по её URL.
// Используется для отката: если запись обслуживания отвергла фотографию,
// файл на диске не должен остаться сиротой.
func (s *Store) Remove(url string) error {
	// filepath.Base отсекает любые компоненты пути из URL
	name := filepath.Base(strings.TrimPrefix(url, s.baseURL+"/"))
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("некорректный URL фотографии: %s", url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("ошибка удаления фотографии %s: %w", name, err)
	}
	return nil
}

// Dir возвращает путь к директории фотографий.
// Используется сервером для раздачи статики.
func (s *Store) Dir() string {
	return s.dir
}

// BaseURL возвращает базовый URL фотографий.
func (s *Store) BaseURL() string {
	return s.baseURL
}

// generateStorageName генерирует имя файла на диске.
// Пример: pump_20250615120000_a1b2c3d4.jpg
func generateStorageName(originalFilename string) string {
	ext := filepath.Ext(originalFilename)
	name := sanitize(strings.TrimSuffix(originalFilename, ext))

	// Ограничиваем длину имени для предотвращения проблем с FS
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "photo"
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, strings.ToLower(ext))
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// sanitize убирает небезопасные для файловой системы символы.
func sanitize(str string) string {
	var b strings.Builder
	for _, r := range str {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
