package claude

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// cleanTmpDir is the TMPDIR handed to the CLI. A dedicated directory keeps
// editor socket files in the shared temp dir away from the child process.
var cleanTmpDir = filepath.Join(os.TempDir(), "ralph-claude")

// SetCleanEnv gives cmd a copy of the current environment with TMPDIR pointed
// at a private directory and extra applied on top (extra wins).
func SetCleanEnv(cmd *exec.Cmd, extra map[string]string) {
	_ = os.MkdirAll(cleanTmpDir, 0755)

	overrides := map[string]string{"TMPDIR": cleanTmpDir}
	for k, v := range extra {
		overrides[k] = v
	}

	env := make([]string, 0, len(os.Environ())+len(overrides))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	cmd.Env = env
}

// LoadDotEnv reads <dir>/.env. A missing file yields an empty map.
func LoadDotEnv(dir string) (map[string]string, error) {
	path := filepath.Join(dir, ".env")
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return vars, nil
}
