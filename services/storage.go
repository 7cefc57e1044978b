package services

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"collageapi/collage"
)

// Background templates shipped with the service. Keys are the names clients
// send in the process request; values are files under <root>/backgrounds.
var BackgroundTemplates = map[string]string{
	"light_pink":  "base_light_pink.png",
	"mint_green":  "base_mint_green.png",
	"powder_blue": "base_powder_blue.png",
	"lavender":    "base_lavender.png",
	"cream":       "base_cream.png",
}

type StorageServiceProvider interface {
	EnsureDirs() error
	SaveUpload(sessionID uint, imageNum int, filename string, src io.Reader) (string, error)
	SaveOutput(sessionID uint, data []byte) (string, error)
	ReadFile(relPath string) ([]byte, error)
	FullPath(relPath string) string
	PublicURL(relPath string) string
	ListBackgrounds() []string
	BackgroundPath(name string) (string, error)
	PickBackground(sessionID uint) string
}

// StorageService keeps session inputs and finished collages on local disk
// under a single root: inputs/, outputs/ and backgrounds/.
type StorageService struct {
	Root    string
	BaseURL string
}

func NewStorageService() *StorageService {
	return &StorageService{
		Root:    GetEnv("STORAGE_PATH", "./storage"),
		BaseURL: GetEnv("BASE_URL", "http://localhost:8080"),
	}
}

func (s *StorageService) EnsureDirs() error {
	for _, dir := range []string{"inputs", "outputs", "backgrounds"} {
		if err := os.MkdirAll(filepath.Join(s.Root, dir), 0o755); err != nil {
			return fmt.Errorf("storage dir %s: %w", dir, err)
		}
	}
	return nil
}

// SaveUpload stores a source image as inputs/{sessionID}_{imageNum}{ext} and
// returns the path relative to the storage root. A re-upload of the same
// image number overwrites the previous file.
func (s *StorageService) SaveUpload(sessionID uint, imageNum int, filename string, src io.Reader) (string, error) {
	ext := NormalizeImageExtension(filename)
	relPath := filepath.Join("inputs", fmt.Sprintf("%d_%d%s", sessionID, imageNum, ext))

	dst, err := os.Create(s.FullPath(relPath))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return relPath, nil
}

// SaveOutput stores the finished collage as outputs/{sessionID}.png.
func (s *StorageService) SaveOutput(sessionID uint, data []byte) (string, error) {
	relPath := filepath.Join("outputs", fmt.Sprintf("%d.png", sessionID))
	if err := os.WriteFile(s.FullPath(relPath), data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return relPath, nil
}

func (s *StorageService) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(s.FullPath(relPath))
}

func (s *StorageService) FullPath(relPath string) string {
	return filepath.Join(s.Root, relPath)
}

// PublicURL maps a stored file onto the static route.
func (s *StorageService) PublicURL(relPath string) string {
	return fmt.Sprintf("%s/static/%s", strings.TrimRight(s.BaseURL, "/"), filepath.ToSlash(relPath))
}

// ListBackgrounds returns template names in a stable order.
func (s *StorageService) ListBackgrounds() []string {
	names := make([]string, 0, len(BackgroundTemplates))
	for name := range BackgroundTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackgroundPath resolves a template name to its file on disk.
func (s *StorageService) BackgroundPath(name string) (string, error) {
	file, ok := BackgroundTemplates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", collage.ErrMissingAsset, name)
	}
	path := filepath.Join(s.Root, "backgrounds", file)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q (%v)", collage.ErrMissingAsset, name, err)
	}
	return path, nil
}

// PickBackground chooses a template for sessions that did not name one.
// The choice is a stable hash of the session id so retries of the same
// session always render against the same background.
func (s *StorageService) PickBackground(sessionID uint) string {
	names := s.ListBackgrounds()
	h := fnv.New32a()
	fmt.Fprintf(h, "%d", sessionID)
	return names[int(h.Sum32())%len(names)]
}
