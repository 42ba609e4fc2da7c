package vector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hyperjump/saiyo/internal/aspect"
	"github.com/hyperjump/saiyo/internal/metrics"
)

const (
	vecExt  = ".vec"
	idsExt  = ".ids"
	tmpExt  = ".tmp"
	version = 1
)

var magic = [4]byte{'S', 'Y', 'V', 'X'}

// vecHeader precedes the float data in the vector blob.
type vecHeader struct {
	Magic      [4]byte
	Version    uint32
	Dimensions uint32
	Count      uint32
	Generation [16]byte
}

// sideList is the identity/aspect artifact, co-indexed with the vector blob.
type sideList struct {
	Generation string      `json:"generation"`
	Dimensions int         `json:"dimensions"`
	Entries    []sideEntry `json:"entries"`
}

type sideEntry struct {
	Identity string        `json:"identity"`
	Aspect   aspect.Aspect `json:"aspect"`
}

// Paths returns the vector blob and side list paths for a named index.
func Paths(path string) (vecPath, idsPath string) {
	return path + vecExt, path + idsExt
}

// Save writes the live entries to <path>.vec and <path>.ids. Both are written to temporary files,
// synced, then renamed into place vector blob first. An empty path is a no-op.
func (m *MemoryIndex) Save(path string) (err error) {
	if path == "" {
		return nil
	}
	defer func() { countPersist("save", err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	vecPath, idsPath := Paths(path)
	if err := os.MkdirAll(filepath.Dir(vecPath), 0755); err != nil {
		return persistErr("save", path, fmt.Errorf("create index dir: %w", err))
	}

	gen := uuid.New()
	side := sideList{Generation: gen.String(), Dimensions: m.dimensions, Entries: make([]sideEntry, 0, len(m.entries)-m.tombstoned)}
	var blob bytes.Buffer
	hdr := vecHeader{Magic: magic, Version: version, Dimensions: uint32(m.dimensions), Generation: gen}
	hdr.Count = uint32(len(m.entries) - m.tombstoned)
	if err := binary.Write(&blob, binary.LittleEndian, hdr); err != nil {
		return persistErr("save", path, fmt.Errorf("write header: %w", err))
	}
	for _, e := range m.entries {
		if e.dead {
			continue
		}
		blob.Write(float32SliceToBytes(e.vector))
		side.Entries = append(side.Entries, sideEntry{Identity: e.identity, Aspect: e.aspect})
	}
	ids, err := json.Marshal(side)
	if err != nil {
		return persistErr("save", path, fmt.Errorf("encode side list: %w", err))
	}

	if err := writeFileSync(vecPath+tmpExt, blob.Bytes()); err != nil {
		return persistErr("save", path, err)
	}
	if err := writeFileSync(idsPath+tmpExt, ids); err != nil {
		return persistErr("save", path, err)
	}
	if err := os.Rename(vecPath+tmpExt, vecPath); err != nil {
		return persistErr("save", path, fmt.Errorf("commit vector blob: %w", err))
	}
	if err := os.Rename(idsPath+tmpExt, idsPath); err != nil {
		return persistErr("save", path, fmt.Errorf("commit side list: %w", err))
	}
	syncDir(filepath.Dir(vecPath))
	return nil
}

// Load replaces the index contents with <path>.vec and <path>.ids. When neither exists the index is
// left empty. A side list left behind by an interrupted Save is rolled forward when its generation
// matches the committed vector blob.
func (m *MemoryIndex) Load(path string) (err error) {
	if path == "" {
		return nil
	}
	defer func() { countPersist("load", err) }()

	vecPath, idsPath := Paths(path)
	_, vecErr := os.Stat(vecPath)
	_, idsErr := os.Stat(idsPath)
	if os.IsNotExist(vecErr) && os.IsNotExist(idsErr) {
		m.Reset()
		return nil
	}
	if vecErr != nil {
		return persistErr("load", path, fmt.Errorf("vector blob: %w", vecErr))
	}

	hdr, vectors, err := readBlob(vecPath, m.dimensions)
	if err != nil {
		return persistErr("load", path, err)
	}
	gen := uuid.UUID(hdr.Generation).String()

	side, err := readSideList(idsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistErr("load", path, err)
	}
	if side == nil || side.Generation != gen {
		side, err = rollForward(idsPath, gen)
		if err != nil {
			return persistErr("load", path, err)
		}
	}
	if len(side.Entries) != len(vectors) {
		return persistErr("load", path, fmt.Errorf("side list has %d entries, vector blob has %d", len(side.Entries), len(vectors)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	for i, se := range side.Entries {
		m.appendLocked(se.Identity, se.Aspect, vectors[i])
	}
	return nil
}

func rollForward(idsPath, gen string) (*sideList, error) {
	pending, err := readSideList(idsPath + tmpExt)
	if err != nil {
		return nil, fmt.Errorf("side list out of sync with vector blob: %w", err)
	}
	if pending.Generation != gen {
		return nil, fmt.Errorf("side list out of sync with vector blob (generation %s)", gen)
	}
	if err := os.Rename(idsPath+tmpExt, idsPath); err != nil {
		return nil, fmt.Errorf("roll forward side list: %w", err)
	}
	return pending, nil
}

// readBlob reads the vector blob. The header is checked against dimensions and the file size
// before anything is allocated from it.
func readBlob(path string, dimensions int) (vecHeader, [][]float32, error) {
	var hdr vecHeader
	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, fmt.Errorf("open vector blob: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return hdr, nil, fmt.Errorf("stat vector blob: %w", err)
	}
	r := bufio.NewReader(f)
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != magic {
		return hdr, nil, fmt.Errorf("not a saiyo vector blob")
	}
	if hdr.Version != version {
		return hdr, nil, fmt.Errorf("unsupported vector blob version %d", hdr.Version)
	}
	if int64(hdr.Dimensions) != int64(dimensions) {
		return hdr, nil, fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, hdr.Dimensions, dimensions)
	}
	want := int64(binary.Size(hdr)) + int64(hdr.Count)*int64(hdr.Dimensions)*4
	if info.Size() != want {
		return hdr, nil, fmt.Errorf("vector blob is %d bytes, header declares %d", info.Size(), want)
	}
	vectors := make([][]float32, 0, hdr.Count)
	buf := make([]byte, int(hdr.Dimensions)*4)
	for i := uint32(0); i < hdr.Count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return hdr, nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return hdr, vectors, nil
}

func readSideList(path string) (*sideList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var side sideList
	if err := json.Unmarshal(data, &side); err != nil {
		return nil, fmt.Errorf("decode side list %s: %w", filepath.Base(path), err)
	}
	return &side, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func countPersist(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IndexPersistTotal.WithLabelValues(op, status).Inc()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
