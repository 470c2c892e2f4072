package http_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quorumhq/sessiond/pkg/cryptox"
)

// TestMain points password hashing at a throwaway pepper before any test
// triggers a hash.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "sessiond-pepper")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}
