package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "mdsheet"
)

func DataDir() (string, error) {
	if override := os.Getenv("MDSHEET_DATA_DIR"); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func ExportsDir(dataDir string) string {
	return filepath.Join(dataDir, "exports")
}
