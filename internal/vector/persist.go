package vector

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// On-disk layout of a saved index directory.
const (
	vectorFileName  = "code_index.vec"
	faissFileName   = "code_index.faiss"
	mappingFileName = "id_mapping.gob"
	lockFileName    = ".index.lock"

	formatVersion = 1
)

var formatMagic = [4]byte{'C', 'L', 'V', 'X'}

// vectorFileHeader precedes count*dimensions little-endian float32 values.
type vectorFileHeader struct {
	Magic      [4]byte
	Version    uint32
	Dimensions uint32
	Count      uint32
}

const headerSize = 16

// lockDir takes an advisory lock on dir so a vector file and its mapping are never
// written or read half way by another process. shared selects a read lock.
func lockDir(dir string, shared bool) (*flock.Flock, error) {
	l := flock.New(filepath.Join(dir, lockFileName))
	var err error
	if shared {
		err = l.RLock()
	} else {
		err = l.Lock()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %v", ErrPersistence, dir, err)
	}
	return l, nil
}

// tempPath returns a unique hidden sibling path for dir/name.
func tempPath(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", name, uuid.New().String()))
}

// stageFile writes a temporary sibling of dir/name and returns its path.
func stageFile(dir, name string, write func(w io.Writer) error) (string, error) {
	tmp := tempPath(dir, name)
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrPersistence, name, err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: write %s: %v", ErrPersistence, name, err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: flush %s: %v", ErrPersistence, name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: sync %s: %v", ErrPersistence, name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: close %s: %v", ErrPersistence, name, err)
	}
	return tmp, nil
}

// commitFiles renames staged files onto their final names, in order.
// Staged files that were not committed are removed.
func commitFiles(dir string, staged map[string]string, order []string) error {
	for i, name := range order {
		if err := os.Rename(staged[name], filepath.Join(dir, name)); err != nil {
			for _, rest := range order[i:] {
				_ = os.Remove(staged[rest])
			}
			return fmt.Errorf("%w: commit %s: %v", ErrPersistence, name, err)
		}
	}
	return nil
}

func writeVectors(w io.Writer, dims int, flat []float32) error {
	count := 0
	if dims > 0 {
		count = len(flat) / dims
	}
	hdr := vectorFileHeader{
		Magic:      formatMagic,
		Version:    formatVersion,
		Dimensions: uint32(dims),
		Count:      uint32(count),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, flat)
}

// readVectors reads a vector file written by writeVectors and checks it against dims.
func readVectors(path string, dims int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open vectors: %v", ErrPersistence, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat vectors: %v", ErrPersistence, err)
	}
	r := bufio.NewReader(f)
	var hdr vectorFileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptIndex, err)
	}
	if hdr.Magic != formatMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptIndex, hdr.Magic[:])
	}
	if hdr.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptIndex, hdr.Version)
	}
	if int(hdr.Dimensions) != dims {
		return nil, fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, hdr.Dimensions, dims)
	}
	want := int64(headerSize) + int64(hdr.Count)*int64(dims)*4
	if st.Size() != want {
		return nil, fmt.Errorf("%w: vector file size %d, want %d for %d rows", ErrCorruptIndex, st.Size(), want, hdr.Count)
	}
	flat := make([]float32, int(hdr.Count)*dims)
	if err := binary.Read(r, binary.LittleEndian, flat); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", ErrPersistence, err)
	}
	return flat, nil
}

func writeMapping(w io.Writer, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	return gob.NewEncoder(w).Encode(ids)
}

// readMapping decodes the ordered external ID list. A missing mapping next to an
// existing vector file is corruption, not a first run.
func readMapping(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: id mapping missing", ErrCorruptIndex)
		}
		return nil, fmt.Errorf("%w: open id mapping: %v", ErrPersistence, err)
	}
	defer f.Close()
	var ids []int64
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&ids); err != nil {
		return nil, fmt.Errorf("%w: decode id mapping: %v", ErrCorruptIndex, err)
	}
	return ids, nil
}

// persistedIndexExists reports whether dir holds a saved index file called name.
func persistedIndexExists(dir, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat index: %v", ErrPersistence, err)
}
