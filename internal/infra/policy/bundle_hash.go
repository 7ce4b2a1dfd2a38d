package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type bundleHashPayload struct {
	Files []bundleHashFile `json:"files"`
}

type bundleHashFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHashFromPath digests the normative bundle files (rego and
// data documents) into a stable identifier reported alongside policy
// decisions, so operators can tell which rule set produced them.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return computeBundleHashFromFS(os.DirFS(bundlePath))
}

func computeBundleHashFromFS(fsys fs.FS) (string, error) {
	var files []bundleHashFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !isNormativeFile(base) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, bundleHashFile{
			Path:   filepath.ToSlash(path),
			SHA256: sha256Hex(data),
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	payload, err := json.Marshal(bundleHashPayload{Files: files})
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

func isNormativeFile(base string) bool {
	if strings.HasPrefix(base, ".") {
		return false
	}
	if base == "data.json" {
		return true
	}
	return strings.HasSuffix(base, ".rego")
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
