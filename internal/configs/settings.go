package configs

import (
	"os"
	"path/filepath"

	"github.com/PolarWolf314/sealkeeper/internal/utils"
)

type UserSettings struct {
	ConfigDir  string
	ConfigPath string
	Username   string
}

var UserSealkeeperSettings *UserSettings

func init() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// No $HOME (e.g. some CI runners): fall back to the working directory.
		configDir = "."
	}

	username, err := utils.GetUsername()
	if err != nil {
		username = "unknown"
	}

	UserSealkeeperSettings = &UserSettings{
		ConfigDir:  filepath.Join(configDir, "sealkeeper"),
		ConfigPath: filepath.Join(configDir, "sealkeeper", "config.toml"),
		Username:   username,
	}
}
