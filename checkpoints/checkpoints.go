// Package checkpoints saves and loads the fitted state of a Taylor emulator
// engine.
//
// The main object is the Handler, created by calling Build, followed by the
// option setters and finally Config.Done. If a previously saved checkpoint
// exists in the configured directory, Done loads the latest one into the
// engine; Handler.Save writes a new checkpoint at any later point.
//
// Each checkpoint is a pair of files: a JSON header with everything but the
// coefficients (engine name, checkpoint id, parameters, order, center and
// powers), and a raw little-endian float64 blob with the coefficient matrix.
// The pair is the entire reloadable representation of the model; nothing is
// recomputed from raw samples on load.
package checkpoints

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/emulator/emulators/taylor"
	"github.com/gomlx/emulator/types/multiindex"
)

// DirPermMode is the default directory creation permission (before umask).
var DirPermMode = os.FileMode(0770)

const (
	baseNamePrefix   = "emulator-"
	headerNameSuffix = ".json"
	coeffsNameSuffix = ".bin"
)

// Config for the Handler to be created. Build it with Build, configure it
// with the setter methods and materialize it with Done.
type Config struct {
	engine *taylor.Engine
	err    error

	dir  string
	keep int
}

// Build a configuration for a checkpoints.Handler attached to the engine.
func Build(engine *taylor.Engine) *Config {
	return &Config{engine: engine, keep: 1}
}

func (c *Config) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Dir sets the directory where checkpoints are saved and loaded, creating it
// if needed. It must be set before calling Done.
func (c *Config) Dir(dir string) *Config {
	c.dir = dir
	fi, err := os.Stat(dir)
	if err != nil && !os.IsNotExist(err) {
		c.setError(errors.Wrapf(err, "failed to os.Stat(%q)", dir))
		return c
	}
	if err == nil && !fi.IsDir() {
		c.setError(errors.Errorf("checkpoint path %q exists and is not a directory", dir))
		return c
	}
	if err == nil {
		return c
	}
	if err = os.MkdirAll(dir, DirPermMode); err != nil {
		c.setError(errors.Wrapf(err, "failed to create checkpoint directory %q", dir))
	}
	return c
}

// Keep configures how many checkpoints to retain when saving; older ones are
// removed. Set to -1 to never remove checkpoints. The default is 1.
func (c *Config) Keep(n int) *Config {
	c.keep = n
	return c
}

// Done creates the Handler. If the directory holds previous checkpoints, the
// latest one is loaded into the engine.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.dir == "" {
		return nil, errors.Errorf("directory for checkpoints not configured or empty")
	}
	if c.engine == nil {
		return nil, errors.Errorf("no engine attached to the checkpoints configuration")
	}
	h := &Handler{config: c}
	saved, err := h.List()
	if err != nil {
		return nil, err
	}
	h.count = maxCountFromNames(saved) + 1
	if len(saved) > 0 {
		if err = h.load(saved[len(saved)-1]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustDone calls Done and panics on error.
func (c *Config) MustDone() *Handler {
	h, err := c.Done()
	if err != nil {
		panic(errors.Wrap(err, "failed to create checkpoints.Handler"))
	}
	return h
}

// Handler saves and loads checkpoints for one engine. See the package
// documentation for the file layout.
type Handler struct {
	config *Config
	count  int
}

// String implements fmt.Stringer.
func (h *Handler) String() string {
	return "checkpoints.Handler(" + strconv.Quote(h.config.dir) + ")"
}

// Dir returns the checkpoint directory.
func (h *Handler) Dir() string { return h.config.dir }

// Header is the JSON part of a checkpoint: the fitted state minus the
// coefficient blob, plus identity metadata.
type Header struct {
	// ID is unique per saved checkpoint.
	ID string

	// Engine is the registry name of the engine that produced the state.
	Engine string

	CreatedAt time.Time
	Params    []string
	Order     int

	Center     []float64
	Powers     []multiindex.MultiIndex
	NumOutputs int

	// NumCoeffs is the expected number of float64 values in the blob file
	// (terms × outputs), checked on load.
	NumCoeffs int
}

// Save writes a new checkpoint pair for the engine's current fitted state,
// then prunes checkpoints beyond the configured Keep count.
func (h *Handler) Save() error {
	state := h.config.engine.State()
	if state == nil {
		return errors.Errorf("%s: engine is not fitted, nothing to save", h)
	}
	baseName := h.newBaseName()
	header := Header{
		ID:         uuid.NewString(),
		Engine:     h.config.engine.Name(),
		CreatedAt:  time.Now(),
		Params:     h.config.engine.Params(),
		Order:      state.Order,
		Center:     state.Center,
		Powers:     state.Powers,
		NumOutputs: state.NumOutputs,
		NumCoeffs:  len(state.Derivatives),
	}

	coeffsName := filepath.Join(h.config.dir, baseName+coeffsNameSuffix)
	coeffsFile, err := os.Create(coeffsName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create %q", h, coeffsName)
	}
	if err = binary.Write(coeffsFile, binary.LittleEndian, state.Derivatives); err != nil {
		_ = coeffsFile.Close()
		return errors.Wrapf(err, "%s: failed to write coefficients to %q", h, coeffsName)
	}
	if err = coeffsFile.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to close %q", h, coeffsName)
	}

	headerName := filepath.Join(h.config.dir, baseName+headerNameSuffix)
	headerFile, err := os.Create(headerName)
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create %q", h, headerName)
	}
	enc := json.NewEncoder(headerFile)
	enc.SetIndent("", "  ")
	if err = enc.Encode(&header); err != nil {
		_ = headerFile.Close()
		return errors.Wrapf(err, "%s: failed to encode header to %q", h, headerName)
	}
	if err = headerFile.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to close %q", h, headerName)
	}
	h.count++
	klog.V(1).Infof("%s: saved checkpoint %q (%d terms)", h, baseName, len(state.Powers))
	return h.prune()
}

// load reads the checkpoint pair with the given base name into the engine.
func (h *Handler) load(baseName string) error {
	state, header, err := readPair(h.config.dir, baseName)
	if err != nil {
		return errors.Wrapf(err, "%s", h)
	}
	engineParams := h.config.engine.Params()
	if len(engineParams) == 0 {
		*h.config.engine = *taylor.FromState(state, header.Params...)
	} else {
		if !equalStrings(engineParams, header.Params) {
			return errors.Errorf("%s: checkpoint %q was fitted over parameters %v, engine varies %v",
				h, baseName, header.Params, engineParams)
		}
		h.config.engine.Restore(state)
	}
	klog.V(1).Infof("%s: loaded checkpoint %q", h, baseName)
	return nil
}

// List returns the checkpoint base names in the directory, oldest first.
func (h *Handler) List() ([]string, error) {
	return ListDir(h.config.dir)
}

// ListDir returns the checkpoint base names in dir, oldest first.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list checkpoints in %q", dir)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, baseNamePrefix) || !strings.HasSuffix(name, headerNameSuffix) {
			continue
		}
		names = append(names, name[:len(name)-len(headerNameSuffix)])
	}
	sort.Strings(names)
	return names, nil
}

// prune removes the oldest checkpoints beyond the configured Keep count.
func (h *Handler) prune() error {
	if h.config.keep < 0 {
		return nil
	}
	names, err := h.List()
	if err != nil {
		return err
	}
	for len(names) > h.config.keep {
		name := names[0]
		names = names[1:]
		for _, suffix := range []string{headerNameSuffix, coeffsNameSuffix} {
			path := filepath.Join(h.config.dir, name+suffix)
			if err = os.Remove(path); err != nil {
				return errors.Wrapf(err, "%s: failed to remove old checkpoint file %q", h, path)
			}
		}
	}
	return nil
}

func (h *Handler) newBaseName() string {
	now := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%sn%05d-%s", baseNamePrefix, h.count, now)
}

var countRegex = regexp.MustCompile(`^emulator-n(\d+)-`)

// maxCountFromNames returns the largest checkpoint counter among the base
// names, or -1 when there is none.
func maxCountFromNames(names []string) int {
	maxID := -1
	for _, name := range names {
		matches := countRegex.FindStringSubmatch(name)
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Load reads the latest checkpoint in dir and reconstructs a fitted engine
// from it, with no further inputs.
func Load(dir string) (*taylor.Engine, *Header, error) {
	names, err := ListDir(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(names) == 0 {
		return nil, nil, errors.Errorf("no checkpoints found in %q", dir)
	}
	return LoadName(dir, names[len(names)-1])
}

// LoadName reads the checkpoint with the given base name from dir.
func LoadName(dir, baseName string) (*taylor.Engine, *Header, error) {
	state, header, err := readPair(dir, baseName)
	if err != nil {
		return nil, nil, err
	}
	return taylor.FromState(state, header.Params...), header, nil
}

func readPair(dir, baseName string) (*taylor.State, *Header, error) {
	headerName := filepath.Join(dir, baseName+headerNameSuffix)
	headerFile, err := os.Open(headerName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open checkpoint header %q", headerName)
	}
	var header Header
	err = json.NewDecoder(headerFile).Decode(&header)
	_ = headerFile.Close()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decode checkpoint header %q", headerName)
	}
	if header.Engine != taylor.Name {
		return nil, nil, errors.Errorf("checkpoint %q was saved by engine %q, expected %q", baseName, header.Engine, taylor.Name)
	}
	if header.NumCoeffs != len(header.Powers)*header.NumOutputs {
		return nil, nil, errors.Errorf("checkpoint %q is inconsistent: %d coefficients for %d terms × %d outputs",
			baseName, header.NumCoeffs, len(header.Powers), header.NumOutputs)
	}

	coeffsName := filepath.Join(dir, baseName+coeffsNameSuffix)
	coeffsFile, err := os.Open(coeffsName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open checkpoint coefficients %q", coeffsName)
	}
	coeffs := make([]float64, header.NumCoeffs)
	err = binary.Read(coeffsFile, binary.LittleEndian, coeffs)
	_ = coeffsFile.Close()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %d coefficients from %q", header.NumCoeffs, coeffsName)
	}

	state := &taylor.State{
		Center:      header.Center,
		Powers:      header.Powers,
		Derivatives: coeffs,
		NumOutputs:  header.NumOutputs,
		Order:       header.Order,
	}
	return state, &header, nil
}
