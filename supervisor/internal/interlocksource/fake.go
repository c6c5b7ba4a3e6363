package interlocksource

import (
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/snd-kmd/caenhv/supervisor/internal/structures"
)

// fakeSource reads an integer from a local file, for tests and local
// runs without a real interlock source behind it.
type fakeSource struct {
	path string
}

func newFakeSource(u *url.URL) (Source, error) {
	path := u.Host + u.Path
	if path == "" {
		path = u.Opaque
	}
	return &fakeSource{path: path}, nil
}

func (s *fakeSource) GetInterlock() structures.InterlockState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return failSafe(err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return failSafe(err)
	}

	return structures.NewInterlockState(n > 0)
}

func (s *fakeSource) Close() {}
