package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.ringcore.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ringcore")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the UDS socket the engine host serves gRPC on.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "ringcored.sock")
}

// BridgeSocketPath returns the default socket of the daemon bridge for a
// profile, used when the config does not name one.
func BridgeSocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// AppDBPath returns the history database path.
func AppDBPath(name string) string {
	return filepath.Join(Dir(name), "ringcore.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the host log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "ringcored.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
