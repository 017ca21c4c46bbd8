package speech

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store writes audio artifacts into a directory that is served under
// <baseURL>/audio/. Files are never removed here.
type Store struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewStore(dir, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir %s: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes audio under a timestamped name and returns its public URL.
func (s *Store) Save(audio []byte) (string, error) {
	name := fmt.Sprintf("reply-%d-%s.mp3", s.now().UnixNano(), uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio %s: %w", path, err)
	}
	return s.baseURL + "/audio/" + name, nil
}
