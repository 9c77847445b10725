package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

func localUploadDir() string {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return dir
}

func SaveBytesToLocal(objectName string, data []byte) error {
	dir := localUploadDir()
	path := filepath.Join(dir, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %v", err)
	}
	return nil
}

func DeleteLocalObject(objectName string) error {
	path := filepath.Join(localUploadDir(), filepath.FromSlash(objectName))
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func LocalPublicURL(objectName string) string {
	base := os.Getenv("PUBLIC_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/uploads/%s", base, objectName)
}
