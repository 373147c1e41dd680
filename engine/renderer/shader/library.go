package shader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("shader")

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// stageSuffix maps a shader stage to the file suffix used by library sources.
var stageSuffix = map[ShaderType]string{
	ShaderTypeVertex:   "vert",
	ShaderTypeFragment: "frag",
	ShaderTypeCompute:  "comp",
}

// Library resolves shaders by key from a file system of "<key>.<vert|frag|comp>.wgsl" files
// and caches the parsed result. Sources can be swapped to an on-disk directory and watched
// so that edits rebuild the programs that use them.
type Library struct {
	mu      sync.Mutex
	name    string
	fsys    fs.FS
	cache   map[string]Shader
	version uint64
}

// NewLibrary creates a Library reading from fsys, usually an embed.FS sub-tree.
//
// Parameters:
//   - name: label used in log lines
//   - fsys: the file system holding the WGSL sources
//
// Returns:
//   - *Library: the library
func NewLibrary(name string, fsys fs.FS) *Library {
	return &Library{
		name:  name,
		fsys:  fsys,
		cache: make(map[string]Shader),
	}
}

// Name returns the label of the library.
func (l *Library) Name() string {
	return l.name
}

// Get returns the parsed shader for a key and stage, reading and pre-processing it on first use.
//
// Parameters:
//   - key: the shader key, e.g. "gbuffer"
//   - shaderType: the stage
//
// Returns:
//   - Shader: the parsed shader
//   - error: error if the file is missing or fails to parse
func (l *Library) Get(key string, shaderType ShaderType) (Shader, error) {
	file := key + "." + stageSuffix[shaderType] + ".wgsl"

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.cache[file]; ok {
		return s, nil
	}
	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return nil, fmt.Errorf("shader library %s: %w", l.name, err)
	}
	s, err := NewShaderFromSource(key, shaderType, string(data))
	if err != nil {
		return nil, fmt.Errorf("shader library %s: %w", l.name, err)
	}
	l.cache[file] = s
	return s, nil
}

// Version returns a counter bumped every time cached shaders are invalidated.
// Consumers compare it against the version their programs were built from.
func (l *Library) Version() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version
}

// Files lists the WGSL sources of the library in lexical order.
//
// Returns:
//   - []string: file names relative to the library root
//   - error: error if the file system cannot be walked
func (l *Library) Files() ([]string, error) {
	l.mu.Lock()
	fsys := l.fsys
	l.mu.Unlock()

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".wgsl") {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// ParseFile splits a library file name into its key and stage.
//
// Parameters:
//   - file: a name of the form "<key>.<vert|frag|comp>.wgsl"
//
// Returns:
//   - string: the key
//   - ShaderType: the stage
//   - bool: false if the name does not follow the convention
func ParseFile(file string) (string, ShaderType, bool) {
	base := strings.TrimSuffix(path.Base(file), ".wgsl")
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return "", 0, false
	}
	for st, suffix := range stageSuffix {
		if base[dot+1:] == suffix {
			return base[:dot], st, true
		}
	}
	return "", 0, false
}

// invalidate drops every cached shader and bumps the version.
func (l *Library) invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]Shader)
	l.version++
}

// Watch switches the library to read from dir and reloads whenever a .wgsl file in it changes.
// Watch blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: cancels the watch
//   - dir: the directory holding override sources
//
// Returns:
//   - error: error if the watcher cannot be created
func (l *Library) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create shader watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	l.mu.Lock()
	l.fsys = os.DirFS(dir)
	l.mu.Unlock()
	l.invalidate()
	logger.Infof("%s shaders now read from %s", l.name, dir)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".wgsl" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(reloadDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("shader watcher error: %v", err)
		case <-pending:
			pending = nil
			l.invalidate()
			logger.Infof("reloading %s shaders", l.name)
		}
	}
}
